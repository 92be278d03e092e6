package model

import (
	"fmt"
	"time"
)

// RunStatus describes the lifecycle state of one ingestion run.
type RunStatus string

var (
	// RunRunning is set when the run is created and never re-read by any
	// other component; it is not a lock.
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Scope is one ingestion attempt's coordinates: source, record family and
// the optional coin/date filter.
type Scope struct {
	Source     Source
	Family     Family
	Coin       Coin
	TargetDate *time.Time
}

func (s Scope) String() string {
	out := fmt.Sprintf("%s/%s", s.Source, s.Family)
	if s.Coin != "" {
		out += "/" + string(s.Coin)
	}
	if s.TargetDate != nil {
		out += "@" + s.TargetDate.Format("2006-01-02")
	}
	return out
}

// IngestionRun is the ledger row recording one ingestion attempt.
type IngestionRun struct {
	ID               int64      `gorm:"primaryKey;autoIncrement"`
	Source           Source     `gorm:"column:source;type:varchar(50);not null;index:idx_runs_source_family"`
	Family           Family     `gorm:"column:record_family;type:varchar(50);not null;index:idx_runs_source_family"`
	Coin             Coin       `gorm:"column:coin_symbol;type:varchar(10)"`
	TargetDate       *time.Time `gorm:"column:target_date;type:date"`
	Status           RunStatus  `gorm:"column:status;type:varchar(20);not null;index:idx_runs_status"`
	RecordsProcessed int        `gorm:"column:records_processed;not null;default:0"`
	RecordsInserted  int        `gorm:"column:records_inserted;not null;default:0"`
	RecordsUpdated   int        `gorm:"column:records_updated;not null;default:0"`
	StartedAt        time.Time  `gorm:"column:started_at;not null"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	ErrorMessage     string     `gorm:"column:error_message;type:text"`
}

func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// RunCounts carries the record counters written at finalization.
type RunCounts struct {
	Processed int
	Inserted  int
	Updated   int
}
