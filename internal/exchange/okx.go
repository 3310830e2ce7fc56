package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fundingwatch/config"
	"fundingwatch/internal/model"
)

const okxFundingHistoryPath = "/api/v5/public/funding-rate-history"

// OkxSource reads perpetual swap funding history. OKX returns the most recent
// event first and publishes no mark price on this endpoint.
type OkxSource struct {
	base
	client  *http.Client
	baseURL string
}

type okxFundingHistoryResp struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID       string `json:"instId"`
		FundingRate  string `json:"fundingRate"`
		RealizedRate string `json:"realizedRate"`
		FundingTime  string `json:"fundingTime"`
	} `json:"data"`
}

func NewOkxSource(cfg config.SourceConfig) *OkxSource {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if parsed, err := url.Parse(cfg.URL); err == nil && parsed.Host != "" {
		baseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}
	return &OkxSource{
		base:    newBase("okx", cfg),
		client:  newHTTPClient(cfg),
		baseURL: baseURL,
	}
}

func (s *OkxSource) Ordering() model.Ordering { return model.Descending }

func (s *OkxSource) FetchRecentFunding(ctx context.Context, instID string, limit int) ([]model.FundingRecord, error) {
	limit = s.resolveLimit(limit)
	log := s.entry(instID)
	start := time.Now()

	body, err := s.get(ctx, instID, limit)
	if err != nil {
		return s.finish(log, start, nil, err)
	}

	var resp okxFundingHistoryResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return s.finish(log, start, nil, fmt.Errorf("decode okx funding history: %w", err))
	}
	if resp.Code != "0" {
		return s.finish(log, start, nil, fmt.Errorf("okx api error code=%s msg=%s", resp.Code, resp.Msg))
	}

	records := make([]model.FundingRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		ts, err := parseMillis(item.FundingTime)
		if err != nil {
			return s.finish(log, start, nil, fmt.Errorf("okx: %w", err))
		}
		records = append(records, model.FundingRecord{TimestampMs: ts})
	}
	return s.finish(log, start, records, nil)
}

func (s *OkxSource) get(ctx context.Context, instID string, limit int) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("instId", instID)
	q.Set("limit", strconv.Itoa(limit))
	fullURL := s.baseURL + okxFundingHistoryPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("HTTP error: %s: %s", resp.Status, snippet)
	}
	return body, nil
}
