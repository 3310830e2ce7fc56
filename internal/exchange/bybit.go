package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"fundingwatch/config"
	"fundingwatch/internal/model"
)

// BybitSource reads linear perpetual funding history. Bybit returns the most
// recent event first and publishes no mark price on this endpoint.
type BybitSource struct {
	base
	client *bybit.Client
}

type bybitFundingHistoryResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol               string `json:"symbol"`
		FundingRate          string `json:"fundingRate"`
		FundingRateTimestamp string `json:"fundingRateTimestamp"`
	} `json:"list"`
}

func NewBybitSource(cfg config.SourceConfig) *BybitSource {
	endpoint := cfg.URL
	if parsed, err := url.Parse(cfg.URL); err == nil && parsed.Host != "" {
		endpoint = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(endpoint))
	client.HTTPClient = newHTTPClient(cfg)

	return &BybitSource{
		base:   newBase("bybit", cfg),
		client: client,
	}
}

func (s *BybitSource) Ordering() model.Ordering { return model.Descending }

func (s *BybitSource) FetchRecentFunding(ctx context.Context, symbol string, limit int) ([]model.FundingRecord, error) {
	limit = s.resolveLimit(limit)
	symbol = strings.ToUpper(symbol)
	log := s.entry(symbol)
	start := time.Now()

	if err := s.wait(ctx); err != nil {
		return s.finish(log, start, nil, err)
	}

	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
		"limit":    limit,
	}
	resp, err := s.client.NewUtaBybitServiceWithParams(params).GetFundingRateHistory(ctx)
	if err != nil {
		return s.finish(log, start, nil, fmt.Errorf("bybit funding history request: %w", err))
	}
	if resp == nil {
		return s.finish(log, start, nil, fmt.Errorf("bybit returned an empty response"))
	}
	if resp.RetCode != 0 {
		return s.finish(log, start, nil, fmt.Errorf("bybit api error code=%d msg=%s", resp.RetCode, resp.RetMsg))
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return s.finish(log, start, nil, fmt.Errorf("encode bybit result: %w", err))
	}
	var result bybitFundingHistoryResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return s.finish(log, start, nil, fmt.Errorf("decode bybit result: %w", err))
	}

	records := make([]model.FundingRecord, 0, len(result.List))
	for _, item := range result.List {
		ts, err := parseMillis(item.FundingRateTimestamp)
		if err != nil {
			return s.finish(log, start, nil, fmt.Errorf("bybit: %w", err))
		}
		records = append(records, model.FundingRecord{TimestampMs: ts})
	}
	return s.finish(log, start, records, nil)
}
