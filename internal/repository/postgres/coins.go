package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// UpsertCoin registers a coin in the catalog or refreshes its source ids.
func (r *Repository) UpsertCoin(ctx context.Context, info model.CoinInfo) error {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("upsert_coin", info.Symbol, err, started)
	}()

	var count int64
	if err = r.db.WithContext(ctx).Model(&model.CoinInfo{}).Where("symbol = ?", info.Symbol).Count(&count).Error; err != nil {
		return fmt.Errorf("upsert coin %s: %w", info.Symbol, err)
	}

	if count == 0 {
		info.CreatedAt = r.now()
		info.UpdatedAt = r.now()
		if err = r.db.WithContext(ctx).Create(&info).Error; err != nil {
			return fmt.Errorf("upsert coin %s: %w", info.Symbol, err)
		}
		return nil
	}

	vals := map[string]any{
		"name":              info.Name,
		"explorer_id":       info.ExplorerID,
		"aggregator_id":     info.AggregatorID,
		"ingestion_enabled": info.IngestionEnabled,
		"updated_at":        r.now(),
	}
	if err = r.db.WithContext(ctx).Model(&model.CoinInfo{}).Where("symbol = ?", info.Symbol).Updates(vals).Error; err != nil {
		return fmt.Errorf("upsert coin %s: %w", info.Symbol, err)
	}
	return nil
}

// ActiveCoins returns catalog entries with ingestion enabled, ordered by
// symbol.
func (r *Repository) ActiveCoins(ctx context.Context) ([]model.CoinInfo, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("active_coins", "", err, started)
	}()

	var coins []model.CoinInfo
	err = r.db.WithContext(ctx).
		Where("ingestion_enabled = ?", true).
		Order("symbol").
		Find(&coins).Error
	if err != nil {
		return nil, fmt.Errorf("active coins: %w", err)
	}
	return coins, nil
}
