package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalConfig = `targets:
  - exchange: "Binance"
    symbol: " RIVERUSDT "
    name: "RIVER"
  - exchange: "okx"
    symbol: "RIVER-USDT-SWAP"
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TG_BOT_TOKEN", "TG_CHAT_ID", "STATE_FILE", "STATE_S3_BUCKET", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "fundingwatch", cfg.App.Name)
	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "binance", cfg.Targets[0].Exchange)
	assert.Equal(t, "RIVERUSDT", cfg.Targets[0].Symbol)

	assert.Equal(t, 5, cfg.Exchanges.Binance.Limit)
	assert.Equal(t, 15*time.Second, cfg.Exchanges.Binance.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Exchanges.Okx.Timeout)
	assert.Equal(t, "https://www.okx.com", cfg.Exchanges.Okx.URL)
	assert.True(t, cfg.Exchanges.Bybit.IsEnabled())

	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, "state.json", cfg.State.Path)
	assert.Equal(t, 8, cfg.Alerts.UTCOffsetHours)
	assert.Equal(t, 10*time.Second, cfg.Telegram.Timeout)
	assert.False(t, cfg.Telegram.Configured())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TG_BOT_TOKEN", "123:abc")
	t.Setenv("TG_CHAT_ID", "-10042")
	t.Setenv("STATE_FILE", "/tmp/fw-state.json")

	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.Configured())
	assert.Equal(t, "-10042", cfg.Telegram.ChatID)
	assert.Equal(t, "/tmp/fw-state.json", cfg.State.Path)
}

func TestValidationFailures(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"no targets": `targets: []`,
		"unknown exchange": `targets:
  - exchange: "kraken"
    symbol: "XBTUSD"
`,
		"missing symbol": `targets:
  - exchange: "okx"
`,
		"duplicate": `targets:
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
`,
		"disabled exchange": `targets:
  - exchange: "bybit"
    symbol: "BTCUSDT"
exchanges:
  bybit:
    enabled: false
`,
		"limit too small": `targets:
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
exchanges:
  okx:
    limit: 1
`,
		"s3 without bucket": `targets:
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
state:
  backend: "s3"
`,
		"bad log format": `targets:
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
logging:
  format: "xml"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestS3BackendFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_S3_BUCKET", "funding-state")
	t.Setenv("AWS_REGION", "ap-northeast-1")

	cfg, err := Parse([]byte(`targets:
  - exchange: "okx"
    symbol: "BTC-USDT-SWAP"
state:
  backend: "s3"
`))
	require.NoError(t, err)
	assert.Equal(t, "funding-state", cfg.State.S3.Bucket)
	assert.Equal(t, "ap-northeast-1", cfg.State.S3.Region)
	assert.Equal(t, "fundingwatch/state.json", cfg.State.S3.Key)
}

func TestAlertsLocation(t *testing.T) {
	loc := AlertsConfig{UTCOffsetHours: 8}.Location()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).In(loc)
	assert.Equal(t, 8, ts.Hour())
	assert.Equal(t, "UTC+8", loc.String())
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}

func TestResolvePathKeepsExplicitPath(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "/etc/fw.yml", ResolvePath("/etc/fw.yml"))
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, EnvironmentProduction, AppEnvironment())
	assert.True(t, IsProductionLike(AppEnvironment()))

	t.Setenv("APP_ENV", "")
	assert.Equal(t, EnvironmentDevelopment, AppEnvironment())
	assert.False(t, IsProductionLike(AppEnvironment()))
}
