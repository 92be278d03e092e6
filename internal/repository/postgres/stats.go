package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// Stats summarizes the ingested data set for the operations endpoint.
type Stats struct {
	Blocks       int64                `json:"blocks"`
	Transactions int64                `json:"transactions"`
	Addresses    int64                `json:"addresses"`
	Prices       int64                `json:"prices"`
	TopHeights   map[model.Coin]int64 `json:"top_heights"`
	LatestPrices map[string]time.Time `json:"latest_prices"`
}

// Stats counts stored rows per family and reports the ingestion frontier:
// highest block height per coin and most recent price date per aggregator id.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("stats", "", err, started)
	}()

	s := Stats{
		TopHeights:   map[model.Coin]int64{},
		LatestPrices: map[string]time.Time{},
	}

	counts := []struct {
		m     any
		total *int64
	}{
		{&model.Block{}, &s.Blocks},
		{&model.Transaction{}, &s.Transactions},
		{&model.Address{}, &s.Addresses},
		{&model.PricePoint{}, &s.Prices},
	}
	for _, c := range counts {
		if err = r.db.WithContext(ctx).Model(c.m).Count(c.total).Error; err != nil {
			return Stats{}, fmt.Errorf("count rows: %w", err)
		}
	}

	var heights []struct {
		Coin   model.Coin
		Height int64
	}
	err = r.db.WithContext(ctx).
		Raw("SELECT coin_symbol AS coin, MAX(height) AS height FROM blocks GROUP BY coin_symbol").
		Scan(&heights).Error
	if err != nil {
		return Stats{}, fmt.Errorf("top heights: %w", err)
	}
	for _, h := range heights {
		s.TopHeights[h.Coin] = h.Height
	}

	var prices []struct {
		CoinID string
		Latest time.Time
	}
	err = r.db.WithContext(ctx).
		Raw("SELECT coin_id, MAX(price_date) AS latest FROM prices GROUP BY coin_id").
		Scan(&prices).Error
	if err != nil {
		return Stats{}, fmt.Errorf("latest prices: %w", err)
	}
	for _, p := range prices {
		s.LatestPrices[p.CoinID] = p.Latest
	}

	return s, nil
}

// Ping verifies store connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("ping", "", err, started)
	}()

	if err = r.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
