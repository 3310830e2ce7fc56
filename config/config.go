package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yml"

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Targets   []TargetConfig  `yaml:"targets" validate:"required,min=1,dive"`
	Exchanges ExchangesConfig `yaml:"exchanges"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	State     StateConfig     `yaml:"state"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name" default:"fundingwatch" validate:"required"`
	Version string `yaml:"version" default:"dev" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" default:"text" validate:"oneof=json text"`
	Output string `yaml:"output" default:"stdout"`
	MaxAge int    `yaml:"max_age" validate:"gte=0"`
}

// TargetConfig names one instrument on one exchange. Name is derived from the
// symbol when left empty.
type TargetConfig struct {
	Exchange string `yaml:"exchange" validate:"required,oneof=binance okx bybit"`
	Symbol   string `yaml:"symbol" validate:"required"`
	Name     string `yaml:"name"`
}

type ExchangesConfig struct {
	Binance SourceConfig `yaml:"binance"`
	Okx     SourceConfig `yaml:"okx"`
	Bybit   SourceConfig `yaml:"bybit"`
}

type SourceConfig struct {
	Enabled           *bool         `yaml:"enabled"`
	URL               string        `yaml:"url" validate:"omitempty,url"`
	BackupURL         string        `yaml:"backup_url" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout"`
	Limit             int           `yaml:"limit" default:"5" validate:"gte=2,lte=100"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	Burst             int           `yaml:"burst" default:"1" validate:"gte=1"`
	UserAgent         string        `yaml:"user_agent"`
}

// IsEnabled reports whether the source should be built. Sources are enabled
// unless explicitly switched off.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type TelegramConfig struct {
	APIURL  string        `yaml:"api_url" default:"https://api.telegram.org" validate:"url"`
	Token   string        `yaml:"token"`
	ChatID  string        `yaml:"chat_id"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// Configured reports whether both credentials are present.
func (t TelegramConfig) Configured() bool {
	return t.Token != "" && t.ChatID != ""
}

type StateConfig struct {
	Backend string        `yaml:"backend" default:"file" validate:"oneof=file s3"`
	Path    string        `yaml:"path" default:"state.json"`
	S3      StateS3Config `yaml:"s3"`
}

type StateS3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key" default:"fundingwatch/state.json"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type AlertsConfig struct {
	UTCOffsetHours    int  `yaml:"utc_offset_hours" default:"8" validate:"gte=-12,lte=14"`
	NotifyFetchErrors bool `yaml:"notify_fetch_errors"`
}

// Location returns the fixed zone used for timestamps in alert messages.
func (a AlertsConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", a.UTCOffsetHours), a.UTCOffsetHours*3600)
}

type MetricsConfig struct {
	PushgatewayURL string           `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string           `yaml:"job" default:"fundingwatch"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" default:"FundingWatch"`
	Region    string `yaml:"region"`
}

var (
	validate = validator.New()

	sourceDefaults = map[string]SourceConfig{
		"binance": {
			URL:       "https://fapi.binance.com",
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		"okx": {
			URL:       "https://www.okx.com",
			Timeout:   10 * time.Second,
			UserAgent: "fundingwatch/1.0",
		},
		"bybit": {
			URL:       "https://api.bybit.com",
			Timeout:   10 * time.Second,
			UserAgent: "fundingwatch/1.0",
		},
	}
)

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	fill := func(name string, src *SourceConfig) {
		def := sourceDefaults[name]
		if src.URL == "" {
			src.URL = def.URL
		}
		if src.Timeout <= 0 {
			src.Timeout = def.Timeout
		}
		if src.UserAgent == "" {
			src.UserAgent = def.UserAgent
		}
	}
	fill("binance", &cfg.Exchanges.Binance)
	fill("okx", &cfg.Exchanges.Okx)
	fill("bybit", &cfg.Exchanges.Bybit)

	for i := range cfg.Targets {
		cfg.Targets[i].Exchange = strings.ToLower(strings.TrimSpace(cfg.Targets[i].Exchange))
		cfg.Targets[i].Symbol = strings.TrimSpace(cfg.Targets[i].Symbol)
	}
	return nil
}

// applyEnv copies credentials and deployment specific values from the
// environment over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TG_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = strings.TrimSpace(v)
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.State.Path = strings.TrimSpace(v)
	}
	if v := os.Getenv("STATE_S3_BUCKET"); v != "" {
		cfg.State.S3.Bucket = strings.TrimSpace(v)
	}
	if cfg.State.Backend == "s3" {
		if v := os.Getenv("AWS_REGION"); v != "" && cfg.State.S3.Region == "" {
			cfg.State.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.State.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.State.S3.SecretAccessKey = strings.TrimSpace(v)
		}
	}
	cfg.State.S3.Bucket = strings.TrimSpace(cfg.State.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		}
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if !cfg.Exchanges.Source(t.Exchange).IsEnabled() {
			return fmt.Errorf("target %s/%s references disabled exchange", t.Exchange, t.Symbol)
		}
		key := t.Exchange + "_" + t.Symbol
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate target %s", key)
		}
		seen[key] = struct{}{}
	}

	if cfg.State.Backend == "s3" {
		if cfg.State.S3.Bucket == "" {
			return fmt.Errorf("state.s3.bucket is required when state.backend is s3")
		}
		if !isValidS3Bucket(cfg.State.S3.Bucket) {
			return fmt.Errorf("state.s3.bucket '%s' is invalid", cfg.State.S3.Bucket)
		}
	} else if strings.TrimSpace(cfg.State.Path) == "" {
		return fmt.Errorf("state.path is required when state.backend is file")
	}

	return nil
}

// Source returns the settings for the named exchange.
func (e ExchangesConfig) Source(name string) SourceConfig {
	switch name {
	case "binance":
		return e.Binance
	case "okx":
		return e.Okx
	case "bybit":
		return e.Bybit
	default:
		disabled := false
		return SourceConfig{Enabled: &disabled}
	}
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
