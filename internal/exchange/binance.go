package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"

	"fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/logger"
)

// BinanceSource reads USDⓈ-M futures funding history. Binance returns the
// oldest event first and includes the mark price of each event.
type BinanceSource struct {
	base
	client *futures.Client
	backup *futures.Client
}

// NewBinanceSource builds a source against cfg.URL and, when set, a second
// client for cfg.BackupURL that is used once if the primary request fails.
func NewBinanceSource(cfg config.SourceConfig) *BinanceSource {
	src := &BinanceSource{
		base:   newBase("binance", cfg),
		client: newBinanceClient(cfg, cfg.URL),
	}
	if cfg.BackupURL != "" {
		src.backup = newBinanceClient(cfg, cfg.BackupURL)
	}
	return src
}

func newBinanceClient(cfg config.SourceConfig, endpoint string) *futures.Client {
	client := futures.NewClient("", "")
	client.HTTPClient = newHTTPClient(cfg)
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		client.BaseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}
	return client
}

func (s *BinanceSource) Ordering() model.Ordering { return model.Ascending }

func (s *BinanceSource) FetchRecentFunding(ctx context.Context, symbol string, limit int) ([]model.FundingRecord, error) {
	limit = s.resolveLimit(limit)
	symbol = strings.ToUpper(symbol)
	log := s.entry(symbol)
	start := time.Now()

	rates, err := s.fetch(ctx, s.client, symbol, limit)
	if err != nil && s.backup != nil {
		log.WithError(err).Warn("primary binance endpoint failed, trying backup")
		rates, err = s.fetch(ctx, s.backup, symbol, limit)
		if err == nil {
			log.WithFields(logger.Fields{"endpoint": s.backup.BaseURL}).Info("binance backup endpoint succeeded")
		}
	}
	if err != nil {
		return s.finish(log, start, nil, err)
	}

	records := make([]model.FundingRecord, 0, len(rates))
	for _, r := range rates {
		if r == nil {
			return s.finish(log, start, nil, fmt.Errorf("binance returned a null funding record"))
		}
		records = append(records, model.FundingRecord{
			TimestampMs: r.FundingTime,
			MarkPrice:   parsePrice(r.MarkPrice),
		})
	}
	return s.finish(log, start, records, nil)
}

func (s *BinanceSource) fetch(ctx context.Context, client *futures.Client, symbol string, limit int) ([]*futures.FundingRate, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	rates, err := client.NewFundingRateService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance funding rate request: %w", err)
	}
	return rates, nil
}
