// Package exchange fetches funding-rate history from exchange REST APIs and
// normalizes it into model.FundingRecord lists in each exchange's native order.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/logger"
)

const DefaultLimit = 5

var (
	// ErrInsufficientRecords is returned when an exchange answers with fewer
	// than two funding events.
	ErrInsufficientRecords = errors.New("fewer than two funding records")
	// ErrUnknownExchange is returned by Registry.Get for unconfigured exchanges.
	ErrUnknownExchange = errors.New("unknown exchange")
)

// Source fetches recent funding events for one exchange.
type Source interface {
	// Name is the exchange identifier used in target keys.
	Name() string
	// Ordering is the time order FetchRecentFunding returns records in.
	Ordering() model.Ordering
	// FetchRecentFunding returns at most limit recent funding events for
	// symbol. A limit <= 0 uses the configured default. Any failure, including
	// fewer than two records, is returned as an error.
	FetchRecentFunding(ctx context.Context, symbol string, limit int) ([]model.FundingRecord, error)
}

// Registry maps exchange identifiers to their sources.
type Registry map[string]Source

// NewRegistry builds a source for every enabled exchange in cfg.
func NewRegistry(cfg config.ExchangesConfig) Registry {
	reg := make(Registry, 3)
	if cfg.Binance.IsEnabled() {
		reg.Add(NewBinanceSource(cfg.Binance))
	}
	if cfg.Okx.IsEnabled() {
		reg.Add(NewOkxSource(cfg.Okx))
	}
	if cfg.Bybit.IsEnabled() {
		reg.Add(NewBybitSource(cfg.Bybit))
	}
	return reg
}

// Add registers src under its name, replacing any previous source.
func (r Registry) Add(src Source) {
	r[src.Name()] = src
}

// Get returns the source registered for name.
func (r Registry) Get(name string) (Source, error) {
	src, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, name)
	}
	return src, nil
}

// base carries what every source shares: request pacing, the default
// limit and a logger.
type base struct {
	name    string
	limit   int
	limiter *rate.Limiter
	log     *logger.Log
}

func newBase(name string, cfg config.SourceConfig) base {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return base{
		name:    name,
		limit:   limit,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

func (b base) Name() string { return b.name }

func (b base) resolveLimit(limit int) int {
	if limit <= 0 {
		return b.limit
	}
	return limit
}

func (b base) entry(symbol string) *logger.Entry {
	return b.log.WithComponent(b.name + "_source").WithFields(logger.Fields{
		"exchange": b.name,
		"symbol":   symbol,
	})
}

func (b base) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", b.name, err)
	}
	return nil
}

// finish validates the normalized result and logs the outcome.
func (b base) finish(log *logger.Entry, start time.Time, records []model.FundingRecord, err error) ([]model.FundingRecord, error) {
	logger.LogPerformanceEntry(log, b.name+"_source", "fetch_funding_history", time.Since(start), nil)
	if err == nil && len(records) < 2 {
		err = fmt.Errorf("%s returned %d records: %w", b.name, len(records), ErrInsufficientRecords)
	}
	if err != nil {
		log.WithError(err).Warn("failed to fetch funding history")
		return nil, err
	}
	log.WithFields(logger.Fields{"records": len(records)}).Debug("fetched funding history")
	return records, nil
}

func newHTTPClient(cfg config.SourceConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: userAgentTransport{agent: cfg.UserAgent, base: http.DefaultTransport},
	}
}

// parseMillis reads a millisecond timestamp sent as a JSON string.
func parseMillis(v string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid funding timestamp %q: %w", v, err)
	}
	return ts, nil
}

// parsePrice returns nil for empty, malformed or zero prices.
func parsePrice(v string) *decimal.Decimal {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsZero() {
		return nil
	}
	return &d
}
