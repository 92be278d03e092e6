package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// UpsertPrices applies a validated price batch keyed by (coin id, date).
func (r *Repository) UpsertPrices(ctx context.Context, points []model.PricePoint) (model.UpsertResult, error) {
	recs := make([]model.Keyed, len(points))
	for i := range points {
		recs[i] = &points[i]
	}
	return r.upsertBatch(ctx, "upsert_prices", firstCoin(points), recs)
}

// ExistingPriceDates returns, per aggregator coin id, the calendar dates that
// already have a stored price point within [from, to]. The backfill driver
// uses it to fetch only missing days.
func (r *Repository) ExistingPriceDates(ctx context.Context, from, to time.Time) (map[string][]time.Time, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("existing_price_dates", "", err, started)
	}()

	var rows []model.PricePoint
	err = r.db.WithContext(ctx).
		Model(&model.PricePoint{}).
		Select("coin_id", "price_date").
		Where("price_date BETWEEN ? AND ?", clock.Midnight(from), clock.Midnight(to)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("existing price dates: %w", err)
	}

	dates := make(map[string][]time.Time, len(rows))
	for _, row := range rows {
		dates[row.CoinID] = append(dates[row.CoinID], clock.Midnight(row.Date))
	}
	return dates, nil
}
