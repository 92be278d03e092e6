package postgres

import (
	"context"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// UpsertAddresses applies a validated address batch keyed by (coin, address).
// Counters are overwritten with the incoming values; earlier higher values do
// not survive.
func (r *Repository) UpsertAddresses(ctx context.Context, addrs []model.Address) (model.UpsertResult, error) {
	recs := make([]model.Keyed, len(addrs))
	for i := range addrs {
		recs[i] = &addrs[i]
	}
	return r.upsertBatch(ctx, "upsert_addresses", firstCoin(addrs), recs)
}
