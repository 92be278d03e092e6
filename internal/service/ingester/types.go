// Package ingester orchestrates the fetch-validate-upsert pipeline and the
// ingestion-run ledger around it.
package ingester

import (
	"context"
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Store interface {
		UpsertBlocks(ctx context.Context, blocks []model.Block) (model.UpsertResult, error)
		UpsertTransactions(ctx context.Context, txs []model.Transaction) (model.UpsertResult, error)
		UpsertAddresses(ctx context.Context, addrs []model.Address) (model.UpsertResult, error)
		UpsertPrices(ctx context.Context, points []model.PricePoint) (model.UpsertResult, error)
		BeginRun(ctx context.Context, scope model.Scope) (int64, error)
		FinalizeRun(ctx context.Context, id int64, status model.RunStatus, counts model.RunCounts, errMsg string) error
		ExistingPriceDates(ctx context.Context, from, to time.Time) (map[string][]time.Time, error)
	}

	ExplorerSource interface {
		BlocksByDate(ctx context.Context, explorerID string, date time.Time, limit int) ([]model.Raw, error)
		BlocksByRange(ctx context.Context, explorerID string, start, end int64) ([]model.Raw, error)
		TransactionsByDate(ctx context.Context, explorerID string, date time.Time, limit int) ([]model.Raw, error)
		Addresses(ctx context.Context, explorerID string, addresses []string, batchSize int) ([]model.Raw, error)
		LatestBlockHeight(ctx context.Context, explorerID string) (int64, error)
	}

	PriceSource interface {
		DailyPrices(ctx context.Context, coinIDs []string, date time.Time) (raws []model.Raw, attempted int, err error)
	}

	PipelineMetrics interface {
		ObserveRun(scope model.Scope, status model.RunStatus, started time.Time)
		ObserveRecords(scope model.Scope, inserted, updated, rejected, skipped int)
	}

	Ingestor interface {
		IngestBlocksByDate(ctx context.Context, coin model.CoinInfo, date time.Time) model.Result
		IngestBlocksByRange(ctx context.Context, coin model.CoinInfo, start, end int64) model.Result
		IngestTransactionsByDate(ctx context.Context, coin model.CoinInfo, date time.Time) model.Result
		IngestAddresses(ctx context.Context, coin model.CoinInfo, addresses []string) model.Result
		IngestDailyPrices(ctx context.Context, coins []model.CoinInfo, date time.Time) model.Result
	}
)
