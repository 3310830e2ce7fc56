// Registers on a private registry:
//
//	#fundingwatch_targets_checked_total
//	#fundingwatch_poll_failures_total
//	#fundingwatch_interval_changes_total
//	#fundingwatch_alerts_delivered_total
//	#fundingwatch_interval_hours
//	#fundingwatch_run_duration_seconds
//
// A run is a one-shot process, so the registry is pushed to a Pushgateway
// on Flush instead of being served over HTTP.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"fundingwatch/config"
	"fundingwatch/internal/monitor"
	"fundingwatch/logger"
)

// Recorder collects per-run metrics and publishes them when the run ends.
type Recorder struct {
	registry *prometheus.Registry

	targetsChecked  *prometheus.CounterVec
	pollFailures    *prometheus.CounterVec
	intervalChanges *prometheus.CounterVec
	alertsDelivered *prometheus.CounterVec
	intervalHours   *prometheus.GaugeVec
	runDuration     prometheus.Gauge

	pushURL string
	job     string
	runID   string
	cw      *CloudWatch
	summary Summary
}

// Summary is the run outcome published to CloudWatch.
type Summary struct {
	Checked   int
	Failed    int
	Alerts    int
	Delivered int
	Duration  time.Duration
}

func New(cfg config.MetricsConfig, runID string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		targetsChecked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundingwatch_targets_checked_total",
				Help: "Targets whose funding interval was classified",
			},
			[]string{"exchange"},
		),
		pollFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundingwatch_poll_failures_total",
				Help: "Targets whose funding history could not be fetched",
			},
			[]string{"exchange"},
		),
		intervalChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundingwatch_interval_changes_total",
				Help: "Detected funding interval changes",
			},
			[]string{"exchange"},
		),
		alertsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundingwatch_alerts_delivered_total",
				Help: "Alert messages by delivery outcome",
			},
			[]string{"outcome"},
		),
		intervalHours: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fundingwatch_interval_hours",
				Help: "Last measured spacing between funding events in hours",
			},
			[]string{"exchange", "symbol"},
		),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fundingwatch_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		pushURL: cfg.PushgatewayURL,
		job:     cfg.Job,
		runID:   runID,
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WithCloudWatch makes Flush also publish the run summary through cw.
func (r *Recorder) WithCloudWatch(cw *CloudWatch) *Recorder {
	r.cw = cw
	return r
}

// ObserveRun records the outcome of one monitor run.
func (r *Recorder) ObserveRun(res monitor.Result, elapsed time.Duration) {
	for _, t := range res.Targets {
		if t.Err != nil {
			r.pollFailures.WithLabelValues(t.Target.Exchange).Inc()
			continue
		}
		r.targetsChecked.WithLabelValues(t.Target.Exchange).Inc()
		r.intervalHours.WithLabelValues(t.Target.Exchange, t.Target.Symbol).Set(t.IntervalHours)
		if t.Changed {
			r.intervalChanges.WithLabelValues(t.Target.Exchange).Inc()
		}
	}
	r.alertsDelivered.WithLabelValues("delivered").Add(float64(res.Delivered))
	r.alertsDelivered.WithLabelValues("undelivered").Add(float64(res.Alerts - res.Delivered))
	r.runDuration.Set(elapsed.Seconds())

	r.summary = Summary{
		Checked:   res.Checked,
		Failed:    res.Failed,
		Alerts:    res.Alerts,
		Delivered: res.Delivered,
		Duration:  elapsed,
	}
}

// Flush publishes the collected metrics to every configured sink. Sink
// failures are logged and do not affect the run.
func (r *Recorder) Flush(ctx context.Context) {
	log := logger.GetLogger().WithComponent("metrics")

	if r.pushURL != "" {
		if err := r.push(ctx); err != nil {
			log.WithError(err).Warn("failed to push metrics to pushgateway")
		} else {
			log.WithFields(logger.Fields{"url": r.pushURL, "job": r.job, "run_id": r.runID}).Debug("pushed metrics to pushgateway")
		}
	}
	if r.cw != nil {
		r.cw.PublishSummary(ctx, r.summary)
	}
}

func (r *Recorder) push(ctx context.Context) error {
	job := r.job
	if job == "" {
		job = "fundingwatch"
	}
	// One group per job: every run replaces the previous run's series.
	pusher := push.New(r.pushURL, job).Gatherer(r.registry)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push to %s: %w", r.pushURL, err)
	}
	return nil
}
