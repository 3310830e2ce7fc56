// Package monitor runs one funding-interval check over every configured
// target: poll, classify, compare with persisted state, persist, then alert.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fundingwatch/config"
	"fundingwatch/internal/exchange"
	"fundingwatch/internal/interval"
	"fundingwatch/internal/model"
	"fundingwatch/internal/state"
	"fundingwatch/internal/symbols"
	"fundingwatch/logger"
)

// ErrNoInterval is recorded for a target whose records yield no interval.
var ErrNoInterval = errors.New("funding interval could not be computed")

// Notifier delivers one alert message and reports whether it was accepted.
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// SourceLookup resolves an exchange identifier to its source.
type SourceLookup interface {
	Get(name string) (exchange.Source, error)
}

// StateStore loads and saves the persisted snapshot.
type StateStore interface {
	Load(ctx context.Context) *state.Snapshot
	Save(ctx context.Context, snap *state.Snapshot) error
}

type Options struct {
	// NotifyFetchErrors sends one message the first time a target fails and
	// stays silent until it recovers.
	NotifyFetchErrors bool
	// Location is the zone alert timestamps are rendered in.
	Location *time.Location
	// Now returns the observation time; time.Now when nil.
	Now func() time.Time
}

// TargetResult is the outcome for one target in a run.
type TargetResult struct {
	Target        model.MonitorTarget
	IntervalHours float64
	Mode          model.IntervalMode
	Changed       bool
	Err           error
}

// Result summarises a run.
type Result struct {
	Targets   []TargetResult
	Checked   int
	Failed    int
	Alerts    int
	Delivered int
}

type Monitor struct {
	targets  []model.MonitorTarget
	sources  SourceLookup
	store    StateStore
	notifier Notifier
	opts     Options
	log      *logger.Log
}

func New(targets []model.MonitorTarget, sources SourceLookup, store StateStore, notifier Notifier, opts Options) *Monitor {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		targets:  targets,
		sources:  sources,
		store:    store,
		notifier: notifier,
		opts:     opts,
		log:      logger.GetLogger(),
	}
}

// TargetsFromConfig converts configured targets, deriving a display name
// from the symbol when none is given.
func TargetsFromConfig(cfgs []config.TargetConfig) []model.MonitorTarget {
	targets := make([]model.MonitorTarget, 0, len(cfgs))
	for _, c := range cfgs {
		name := c.Name
		if name == "" {
			name = symbols.DisplayName(c.Exchange, c.Symbol)
		}
		targets = append(targets, model.MonitorTarget{
			Exchange: c.Exchange,
			Symbol:   c.Symbol,
			Name:     name,
		})
	}
	return targets
}

// Run checks every target once in order. Per-target failures are recorded in
// the result and never stop the run. The only returned error is a failure to
// persist state, in which case no alert is sent.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	log := m.log.WithComponent("monitor")
	log.WithFields(logger.Fields{"targets": len(m.targets)}).Info("starting funding interval check")

	snap := m.store.Load(ctx)
	now := m.opts.Now()

	var (
		res   Result
		queue []string
	)

	for _, target := range m.targets {
		key := target.Key()
		tlog := log.WithFields(logger.Fields{
			"exchange": target.Exchange,
			"name":     target.Name,
			"key":      key,
		})

		hours, price, mode, err := m.check(ctx, target)
		if err != nil {
			res.Failed++
			res.Targets = append(res.Targets, TargetResult{Target: target, Err: err})
			tlog.WithError(err).Warn("failed to get data")

			if m.opts.NotifyFetchErrors && !snap.Failures[key] {
				snap.Failures[key] = true
				queue = append(queue, model.FailureAlert{Exchange: target.Exchange, Name: target.Name}.Text())
			}
			continue
		}
		delete(snap.Failures, key)

		prev, seen := snap.Entries[key]
		changed := seen && prev.Mode != mode
		if changed {
			queue = append(queue, model.Alert{
				Exchange: target.Exchange,
				Name:     target.Name,
				OldMode:  prev.Mode,
				NewMode:  mode,
				At:       now,
				Price:    price,
			}.Text(m.opts.Location))
		}

		snap.Entries[key] = model.MonitorState{
			Mode:          mode,
			IntervalHours: hours,
			Updated:       now,
		}

		res.Checked++
		res.Targets = append(res.Targets, TargetResult{
			Target:        target,
			IntervalHours: hours,
			Mode:          mode,
			Changed:       changed,
		})

		fields := logger.Fields{"interval_hours": hours, "mode": mode}
		if changed {
			fields["changed"] = true
			fields["previous_mode"] = prev.Mode
		}
		tlog.WithFields(fields).Info("funding interval checked")
	}

	if err := m.store.Save(ctx, snap); err != nil {
		return res, fmt.Errorf("save state: %w", err)
	}

	res.Alerts = len(queue)
	for _, text := range queue {
		if m.notifier.Send(ctx, text) {
			res.Delivered++
		}
	}

	log.WithFields(logger.Fields{
		"checked":   res.Checked,
		"failed":    res.Failed,
		"alerts":    res.Alerts,
		"delivered": res.Delivered,
	}).Info("funding interval check complete")
	return res, nil
}

func (m *Monitor) check(ctx context.Context, target model.MonitorTarget) (float64, *decimal.Decimal, model.IntervalMode, error) {
	src, err := m.sources.Get(target.Exchange)
	if err != nil {
		return 0, nil, "", err
	}
	records, err := src.FetchRecentFunding(ctx, target.Symbol, 0)
	if err != nil {
		return 0, nil, "", err
	}

	hours, price := interval.Compute(records, src.Ordering())
	mode, ok := interval.Classify(hours)
	if !ok {
		return 0, nil, "", ErrNoInterval
	}
	h, _ := hours.Float64()
	return h, price, mode, nil
}
