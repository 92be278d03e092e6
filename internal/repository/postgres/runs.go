package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

// RunFilter narrows the Runs listing. Zero-valued fields are ignored.
type RunFilter struct {
	Source model.Source
	Family model.Family
	Status model.RunStatus
	Limit  int
}

// BeginRun opens a ledger entry in the running state and returns its id.
func (r *Repository) BeginRun(ctx context.Context, scope model.Scope) (int64, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("begin_run", scope.Coin, err, started)
	}()

	run := model.IngestionRun{
		Source:    scope.Source,
		Family:    scope.Family,
		Coin:      scope.Coin,
		Status:    model.RunRunning,
		StartedAt: r.now(),
	}
	if scope.TargetDate != nil {
		d := *scope.TargetDate
		run.TargetDate = &d
	}
	if err = r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("begin run %s: %w", scope, err)
	}
	return run.ID, nil
}

// FinalizeRun closes a ledger entry with its terminal status and counts.
// errMsg is only stored for partial and failed runs.
func (r *Repository) FinalizeRun(ctx context.Context, id int64, status model.RunStatus, counts model.RunCounts, errMsg string) error {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("finalize_run", "", err, started)
	}()

	vals := map[string]any{
		"status":            status,
		"records_processed": counts.Processed,
		"records_inserted":  counts.Inserted,
		"records_updated":   counts.Updated,
		"completed_at":      r.now(),
	}
	if status != model.RunSuccess && errMsg != "" {
		vals["error_message"] = errMsg
	}

	res := r.db.WithContext(ctx).Model(&model.IngestionRun{}).Where("id = ?", id).Updates(vals)
	if err = res.Error; err != nil {
		return fmt.Errorf("finalize run %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("finalize run %d: no such run", id)
		return err
	}
	return nil
}

// Runs lists ledger entries matching the filter, most recent first.
func (r *Repository) Runs(ctx context.Context, filter RunFilter) ([]model.IngestionRun, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("list_runs", "", err, started)
	}()

	q := r.db.WithContext(ctx).Model(&model.IngestionRun{})
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.Family != "" {
		q = q.Where("record_family = ?", filter.Family)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	var runs []model.IngestionRun
	if err = q.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// SweepStaleRuns marks runs still in the running state after olderThan as
// failed. Returns how many entries were swept.
func (r *Repository) SweepStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("sweep_stale_runs", "", err, started)
	}()

	cutoff := r.now().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Model(&model.IngestionRun{}).
		Where("status = ? AND started_at < ?", model.RunRunning, cutoff).
		Updates(map[string]any{
			"status":        model.RunFailed,
			"completed_at":  r.now(),
			"error_message": "run abandoned",
		})
	if err = res.Error; err != nil {
		return 0, fmt.Errorf("sweep stale runs: %w", err)
	}
	return res.RowsAffected, nil
}
