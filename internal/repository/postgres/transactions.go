package postgres

import (
	"context"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// UpsertTransactions applies a validated transaction batch keyed by
// (coin, tx hash). The block-height reference is advisory and is not checked
// against the blocks table.
func (r *Repository) UpsertTransactions(ctx context.Context, txs []model.Transaction) (model.UpsertResult, error) {
	recs := make([]model.Keyed, len(txs))
	for i := range txs {
		recs[i] = &txs[i]
	}
	return r.upsertBatch(ctx, "upsert_transactions", firstCoin(txs), recs)
}
