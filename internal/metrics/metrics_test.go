package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/internal/monitor"
)

func sampleResult() monitor.Result {
	return monitor.Result{
		Targets: []monitor.TargetResult{
			{Target: model.MonitorTarget{Exchange: "binance", Symbol: "RIVERUSDT"}, IntervalHours: 1, Mode: model.Mode1h},
			{Target: model.MonitorTarget{Exchange: "okx", Symbol: "RIVER-USDT-SWAP"}, IntervalHours: 4, Mode: model.Mode4h, Changed: true},
			{Target: model.MonitorTarget{Exchange: "okx", Symbol: "ETH-USDT-SWAP"}, Err: errors.New("timeout")},
		},
		Checked:   2,
		Failed:    1,
		Alerts:    1,
		Delivered: 1,
	}
}

func TestObserveRun(t *testing.T) {
	r := New(config.MetricsConfig{}, "run-1")
	r.ObserveRun(sampleResult(), 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.targetsChecked.WithLabelValues("binance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.targetsChecked.WithLabelValues("okx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pollFailures.WithLabelValues("okx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.intervalChanges.WithLabelValues("okx")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.intervalHours.WithLabelValues("okx", "RIVER-USDT-SWAP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alertsDelivered.WithLabelValues("delivered")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.alertsDelivered.WithLabelValues("undelivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.runDuration))

	assert.Equal(t, Summary{Checked: 2, Failed: 1, Alerts: 1, Delivered: 1, Duration: 2 * time.Second}, r.summary)
}

func TestFlushPushesToGateway(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(config.MetricsConfig{PushgatewayURL: srv.URL, Job: "fw"}, "run-1")
	r.ObserveRun(sampleResult(), time.Second)
	r.Flush(context.Background())

	assert.Equal(t, "/metrics/job/fw", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestFlushReusesGroupAcrossRuns(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		r := New(config.MetricsConfig{PushgatewayURL: srv.URL, Job: "fundingwatch"}, id)
		r.ObserveRun(sampleResult(), time.Second)
		r.Flush(context.Background())
	}

	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.Equal(t, "PUT /metrics/job/fundingwatch", p)
	}
}

func TestPushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(config.MetricsConfig{PushgatewayURL: srv.URL}, "")
	err := r.push(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), srv.URL))
}

func TestFlushWithoutSinks(t *testing.T) {
	r := New(config.MetricsConfig{}, "")
	r.ObserveRun(monitor.Result{}, 0)
	r.Flush(context.Background())

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestFlushPublishesCloudWatchSummary(t *testing.T) {
	fake := &fakeCloudWatch{}
	r := New(config.MetricsConfig{}, "").WithCloudWatch(newCloudWatch(fake, "", "fundingwatch"))
	r.ObserveRun(sampleResult(), time.Second)
	r.Flush(context.Background())
	assert.Len(t, fake.inputs, 1)
}
