// Package coingecko fetches daily market data from the CoinGecko API.
package coingecko

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

// Client is a rate-limited CoinGecko API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	rl      ratelimit.Limiter
	metrics Metrics
	logger  *zap.Logger
}

// NewClient builds a Client. rpm is the request budget per minute; the free
// tier allows 30. apiKey is optional and sent as the pro-tier query key.
func NewClient(baseURL, apiKey string, timeout time.Duration, rpm int, metrics Metrics, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("coingecko base url is required")
	}
	if rpm <= 0 {
		return nil, errors.New("coingecko rpm must be positive")
	}
	if metrics == nil {
		return nil, errors.New("coingecko metrics is required")
	}
	if logger == nil {
		return nil, errors.New("coingecko logger is required")
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		rl:      ratelimit.New(rpm, ratelimit.Per(time.Minute)),
		metrics: metrics,
		logger:  logger.Named("coingecko"),
	}, nil
}

type historyResponse struct {
	MarketData *struct {
		CurrentPrice map[string]json.Number `json:"current_price"`
		MarketCap    map[string]json.Number `json:"market_cap"`
		TotalVolume  map[string]json.Number `json:"total_volume"`
	} `json:"market_data"`
}

// DailyPrices fetches the market snapshot of each coin for one calendar day.
// attempted counts every coin queried without a transport error, including
// coins whose snapshot carries no market data and thus yields no raw record.
func (c *Client) DailyPrices(ctx context.Context, coinIDs []string, date time.Time) (raws []model.Raw, attempted int, err error) {
	for _, coinID := range coinIDs {
		var hist historyResponse
		if err := c.history(ctx, coinID, date, &hist); err != nil {
			if ctx.Err() != nil {
				return nil, attempted, ctx.Err()
			}
			c.logger.Warn("skipping coin snapshot",
				zap.String("coin_id", coinID),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err))
			continue
		}
		attempted++

		if hist.MarketData == nil {
			c.logger.Warn("no market data in snapshot",
				zap.String("coin_id", coinID),
				zap.String("date", date.Format("2006-01-02")))
			continue
		}

		raw := model.Raw{
			"coin_id":    coinID,
			"price_date": date.Format("2006-01-02"),
		}
		if v, ok := hist.MarketData.CurrentPrice["usd"]; ok {
			raw["price_usd"] = v
		}
		if v, ok := hist.MarketData.TotalVolume["usd"]; ok {
			raw["volume_usd"] = v
		}
		if v, ok := hist.MarketData.MarketCap["usd"]; ok {
			raw["market_cap_usd"] = v
		}
		raws = append(raws, raw)
	}

	if attempted == 0 && len(coinIDs) > 0 {
		return nil, 0, errors.New("all coin snapshots failed")
	}
	return raws, attempted, nil
}

func (c *Client) history(ctx context.Context, coinID string, date time.Time, out *historyResponse) error {
	started := time.Now()
	var err error
	defer func() {
		c.metrics.Observe("coin_history", err, started)
	}()

	c.rl.Take()

	query := url.Values{}
	query.Set("date", date.Format("02-01-2006"))
	query.Set("localization", "false")
	if c.apiKey != "" {
		query.Set("x_cg_pro_api_key", c.apiKey)
	}

	endpoint := fmt.Sprintf("%s/coins/%s/history?%s", c.baseURL, url.PathEscape(coinID), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read history response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("request history for %s: status %d", coinID, resp.StatusCode)
		return err
	}

	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode history response: %w", err)
	}
	return nil
}
