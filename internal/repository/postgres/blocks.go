package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// UpsertBlocks applies a validated block batch keyed by (coin, height).
func (r *Repository) UpsertBlocks(ctx context.Context, blocks []model.Block) (model.UpsertResult, error) {
	recs := make([]model.Keyed, len(blocks))
	for i := range blocks {
		recs[i] = &blocks[i]
	}
	return r.upsertBatch(ctx, "upsert_blocks", firstCoin(blocks), recs)
}

// LatestBlockHeight returns the highest stored height for a coin, or -1 when
// no blocks are stored yet.
func (r *Repository) LatestBlockHeight(ctx context.Context, coin model.Coin) (int64, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("latest_block_height", coin, err, started)
	}()

	var height *int64
	err = r.db.WithContext(ctx).
		Model(&model.Block{}).
		Where("coin_symbol = ?", coin).
		Select("MAX(height)").
		Scan(&height).Error
	if err != nil {
		return 0, fmt.Errorf("latest block height: %w", err)
	}
	if height == nil {
		return -1, nil
	}
	return *height, nil
}
