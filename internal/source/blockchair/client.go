// Package blockchair fetches blocks, transactions and address dashboards
// from the Blockchair explorer API.
package blockchair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Client is a rate-limited Blockchair API client. One limiter guards all
// endpoints because Blockchair enforces a per-key global budget.
type Client struct {
	baseURL string
	http    *http.Client
	rl      ratelimit.Limiter
	metrics Metrics
	logger  *zap.Logger
}

// NewClient builds a Client. rps is the request budget per second.
func NewClient(baseURL string, timeout time.Duration, rps int, metrics Metrics, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("blockchair base url is required")
	}
	if rps <= 0 {
		return nil, errors.New("blockchair rps must be positive")
	}
	if metrics == nil {
		return nil, errors.New("blockchair metrics is required")
	}
	if logger == nil {
		return nil, errors.New("blockchair logger is required")
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		rl:      ratelimit.New(rps),
		metrics: metrics,
		logger:  logger.Named("blockchair"),
	}, nil
}

// BlocksByDate fetches block summaries mined on one calendar day.
func (c *Client) BlocksByDate(ctx context.Context, explorerID string, date time.Time, limit int) ([]model.Raw, error) {
	query := url.Values{}
	query.Set("date", date.Format("2006-01-02"))
	query.Set("limit", fmt.Sprintf("%d", limit))

	data, err := c.get(ctx, "blocks_by_date", fmt.Sprintf("%s/dashboards/blocks", explorerID), query)
	if err != nil {
		return nil, err
	}

	var raws []model.Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode blocks payload: %w", err)
	}

	// The dashboard endpoint reports the height under "id".
	for _, raw := range raws {
		if _, ok := raw["height"]; !ok {
			raw["height"] = raw["id"]
		}
	}
	return raws, nil
}

// BlocksByRange fetches block details for an inclusive height range.
func (c *Client) BlocksByRange(ctx context.Context, explorerID string, start, end int64) ([]model.Raw, error) {
	if start > end {
		return nil, fmt.Errorf("invalid height range %d-%d", start, end)
	}

	heights := make([]string, 0, end-start+1)
	for h := start; h <= end; h++ {
		heights = append(heights, fmt.Sprintf("%d", h))
	}

	data, err := c.get(ctx, "blocks_by_range", fmt.Sprintf("%s/blocks/%s", explorerID, strings.Join(heights, ",")), nil)
	if err != nil {
		return nil, err
	}

	var byHeight map[string]model.Raw
	if err := json.Unmarshal(data, &byHeight); err != nil {
		return nil, fmt.Errorf("decode blocks payload: %w", err)
	}

	// Keyed responses carry no order; emit ascending heights.
	raws := make([]model.Raw, 0, len(byHeight))
	for h := start; h <= end; h++ {
		height := fmt.Sprintf("%d", h)
		details := byHeight[height]
		if details == nil {
			continue
		}
		details["height"] = height
		raws = append(raws, details)
	}
	return raws, nil
}

// TransactionsByDate fetches transaction summaries confirmed on one calendar
// day, newest first, capped at limit.
func (c *Client) TransactionsByDate(ctx context.Context, explorerID string, date time.Time, limit int) ([]model.Raw, error) {
	query := url.Values{}
	query.Set("date", date.Format("2006-01-02"))
	query.Set("limit", fmt.Sprintf("%d", limit))

	data, err := c.get(ctx, "transactions_by_date", fmt.Sprintf("%s/dashboards/transactions", explorerID), query)
	if err != nil {
		return nil, err
	}

	var raws []model.Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode transactions payload: %w", err)
	}
	return raws, nil
}

// Addresses fetches dashboards for a list of addresses in batches. A failed
// batch is logged and skipped; the remaining batches are still fetched.
func (c *Client) Addresses(ctx context.Context, explorerID string, addresses []string, batchSize int) ([]model.Raw, error) {
	if batchSize <= 0 {
		return nil, errors.New("address batch size must be positive")
	}

	var raws []model.Raw
	for i := 0; i < len(addresses); i += batchSize {
		j := i + batchSize
		if j > len(addresses) {
			j = len(addresses)
		}
		batch := addresses[i:j]

		data, err := c.get(ctx, "addresses", fmt.Sprintf("%s/dashboards/addresses/%s", explorerID, strings.Join(batch, ",")), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("skipping address batch",
				zap.String("explorer_id", explorerID),
				zap.Strings("addresses", batch),
				zap.Error(err))
			continue
		}

		var byAddress map[string]struct {
			Address model.Raw `json:"address"`
		}
		if err := json.Unmarshal(data, &byAddress); err != nil {
			return nil, fmt.Errorf("decode addresses payload: %w", err)
		}

		for addr, entry := range byAddress {
			if entry.Address == nil {
				continue
			}
			entry.Address["address"] = addr
			raws = append(raws, entry.Address)
		}
	}
	return raws, nil
}

// LatestBlockHeight returns the chain tip height from the stats endpoint.
func (c *Client) LatestBlockHeight(ctx context.Context, explorerID string) (int64, error) {
	data, err := c.get(ctx, "latest_block_height", fmt.Sprintf("%s/stats", explorerID), nil)
	if err != nil {
		return 0, err
	}

	var stats struct {
		Blocks *int64 `json:"blocks"`
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return 0, fmt.Errorf("decode stats payload: %w", err)
	}
	if stats.Blocks == nil {
		return 0, errors.New("stats payload has no block count")
	}
	return *stats.Blocks, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	started := time.Now()
	var err error
	defer func() {
		c.metrics.Observe(op, err, started)
	}()

	c.rl.Take()

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("request %s: status %d", op, resp.StatusCode)
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err = json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		err = fmt.Errorf("response %s has no data", op)
		return nil, err
	}
	return envelope.Data, nil
}
