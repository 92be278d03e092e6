// Package postgres implements the backing store: the natural-key upsert
// engine for the four record families and the ingestion-run ledger.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, coin model.Coin, err error, started time.Time)
	}
)

// Repository wraps a gorm connection with metrics instrumentation. The
// handle is passed in explicitly; there is no process-wide instance.
type Repository struct {
	db      *gorm.DB
	metrics Metrics
	now     func() time.Time
}

// Open connects to Postgres. Driver error translation is enabled so that
// unique-constraint violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	return db, nil
}

// NewRepository builds a Repository over an open connection.
func NewRepository(db *gorm.DB, metrics Metrics) (*Repository, error) {
	if db == nil {
		return nil, errors.New("gorm db handle is required")
	}
	if metrics == nil {
		return nil, errors.New("repository metrics is required")
	}
	return &Repository{db: db, metrics: metrics, now: clock.NowUTC}, nil
}

func firstCoin[T any](items []T) model.Coin {
	if len(items) == 0 {
		return ""
	}

	switch v := any(items[0]).(type) {
	case model.Block:
		return v.Coin
	case model.Transaction:
		return v.Coin
	case model.Address:
		return v.Coin
	case model.PricePoint:
		return model.Coin(v.CoinID)
	default:
		return ""
	}
}
