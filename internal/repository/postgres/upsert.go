package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// upsertBatch applies one validated batch inside a single transaction.
//
// Records are processed in the given order; a natural key appearing twice is
// applied as insert-then-update, so the later occurrence wins. Per-record
// failures (secondary uniqueness violations, transient statement errors) roll
// back to a savepoint and skip the record without aborting the batch. Only a
// failure to open or commit the transaction is fatal, in which case nothing
// is persisted.
func (r *Repository) upsertBatch(ctx context.Context, op string, coin model.Coin, records []model.Keyed) (model.UpsertResult, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe(op, coin, err, started)
	}()

	res := model.UpsertResult{}
	if len(records) == 0 {
		return res, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, rec := range records {
			sp := fmt.Sprintf("rec_%d", i)
			if spErr := tx.SavePoint(sp).Error; spErr != nil {
				return fmt.Errorf("savepoint %s: %w", sp, spErr)
			}

			var count int64
			if lookErr := tx.Model(rec).Where(rec.NaturalKey()).Count(&count).Error; lookErr != nil {
				tx.RollbackTo(sp)
				res.Skipped = append(res.Skipped, model.SkipWarning{Key: rec.KeyString(), Reason: lookErr.Error()})
				continue
			}

			if count == 0 {
				rec.Stamp(r.now())
				if insErr := tx.Create(rec).Error; insErr != nil {
					tx.RollbackTo(sp)
					res.Skipped = append(res.Skipped, model.SkipWarning{Key: rec.KeyString(), Reason: insErr.Error()})
					continue
				}
				res.Inserted++
				continue
			}

			vals := rec.Merge()
			vals["updated_at"] = r.now()
			if updErr := tx.Model(rec).Where(rec.NaturalKey()).Updates(vals).Error; updErr != nil {
				tx.RollbackTo(sp)
				res.Skipped = append(res.Skipped, model.SkipWarning{Key: rec.KeyString(), Reason: updErr.Error()})
				continue
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return model.UpsertResult{}, fmt.Errorf("upsert %s: %w", op, err)
	}
	return res, nil
}
