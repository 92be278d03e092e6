package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/internal/validate"
)

// Pipeline runs one ingestion attempt per call: open a ledger entry, fetch
// raw records, validate, upsert, finalize the entry with a terminal status.
// A fetch or upsert failure closes the entry as failed; a run that processed
// records without landing any closes as partial.
type Pipeline struct {
	store    Store
	explorer ExplorerSource
	prices   PriceSource
	metrics  PipelineMetrics
	logger   *zap.Logger
	now      func() time.Time

	blockLimit       int
	transactionLimit int
	addressBatchSize int
	rangeSpan        int64
}

// NewPipeline builds a Pipeline with the given dependencies.
func NewPipeline(
	store Store,
	explorer ExplorerSource,
	prices PriceSource,
	metrics PipelineMetrics,
	logger *zap.Logger,
) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline store is required")
	}
	if explorer == nil {
		return nil, errors.New("pipeline explorer source is required")
	}
	if prices == nil {
		return nil, errors.New("pipeline price source is required")
	}
	if metrics == nil {
		return nil, errors.New("pipeline metrics is required")
	}
	if logger == nil {
		return nil, errors.New("pipeline logger is required")
	}

	return &Pipeline{
		store:            store,
		explorer:         explorer,
		prices:           prices,
		metrics:          metrics,
		logger:           logger.Named("pipeline"),
		now:              clock.NowUTC,
		blockLimit:       defaultBlockLimit,
		transactionLimit: defaultTransactionLimit,
		addressBatchSize: defaultAddressBatchSize,
		rangeSpan:        defaultRangeSpan,
	}, nil
}

// IngestBlocksByDate ingests block summaries mined on one calendar day.
func (p *Pipeline) IngestBlocksByDate(ctx context.Context, coin model.CoinInfo, date time.Time) model.Result {
	day := clock.Midnight(date)
	scope := model.Scope{
		Source:     model.SourceBlockchair,
		Family:     model.FamilyBlocks,
		Coin:       coin.Symbol,
		TargetDate: &day,
	}

	return p.run(ctx, scope,
		func(ctx context.Context) ([]model.Raw, int, error) {
			raws, err := p.explorer.BlocksByDate(ctx, coin.ExplorerID, day, p.blockLimit)
			return raws, len(raws), err
		},
		func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error) {
			blocks, rejections := validate.Blocks(raws, coin.Symbol)
			p.logRejections(scope, rejections)
			res, err := p.store.UpsertBlocks(ctx, blocks)
			return res, len(rejections), err
		})
}

// IngestBlocksByRange ingests block details for an inclusive height range.
// A negative end resolves to the chain tip; a negative start resolves to a
// fixed span below the end.
func (p *Pipeline) IngestBlocksByRange(ctx context.Context, coin model.CoinInfo, start, end int64) model.Result {
	scope := model.Scope{
		Source: model.SourceBlockchair,
		Family: model.FamilyBlocks,
		Coin:   coin.Symbol,
	}

	return p.run(ctx, scope,
		func(ctx context.Context) ([]model.Raw, int, error) {
			if end < 0 {
				tip, err := p.explorer.LatestBlockHeight(ctx, coin.ExplorerID)
				if err != nil {
					return nil, 0, fmt.Errorf("resolve chain tip: %w", err)
				}
				end = tip
			}
			if start < 0 {
				start = end - p.rangeSpan
				if start < 0 {
					start = 0
				}
			}
			raws, err := p.explorer.BlocksByRange(ctx, coin.ExplorerID, start, end)
			return raws, len(raws), err
		},
		func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error) {
			blocks, rejections := validate.Blocks(raws, coin.Symbol)
			p.logRejections(scope, rejections)
			res, err := p.store.UpsertBlocks(ctx, blocks)
			return res, len(rejections), err
		})
}

// IngestTransactionsByDate ingests transaction summaries confirmed on one
// calendar day.
func (p *Pipeline) IngestTransactionsByDate(ctx context.Context, coin model.CoinInfo, date time.Time) model.Result {
	day := clock.Midnight(date)
	scope := model.Scope{
		Source:     model.SourceBlockchair,
		Family:     model.FamilyTransactions,
		Coin:       coin.Symbol,
		TargetDate: &day,
	}

	return p.run(ctx, scope,
		func(ctx context.Context) ([]model.Raw, int, error) {
			raws, err := p.explorer.TransactionsByDate(ctx, coin.ExplorerID, day, p.transactionLimit)
			return raws, len(raws), err
		},
		func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error) {
			txs, rejections := validate.Transactions(raws, coin.Symbol)
			p.logRejections(scope, rejections)
			res, err := p.store.UpsertTransactions(ctx, txs)
			return res, len(rejections), err
		})
}

// IngestAddresses ingests dashboard snapshots for an explicit address list.
func (p *Pipeline) IngestAddresses(ctx context.Context, coin model.CoinInfo, addresses []string) model.Result {
	scope := model.Scope{
		Source: model.SourceBlockchair,
		Family: model.FamilyAddresses,
		Coin:   coin.Symbol,
	}

	if len(addresses) == 0 {
		p.logger.Warn("no addresses to ingest", zap.Stringer("scope", scope))
		return model.Result{Scope: scope, Err: "no addresses provided"}
	}

	return p.run(ctx, scope,
		func(ctx context.Context) ([]model.Raw, int, error) {
			raws, err := p.explorer.Addresses(ctx, coin.ExplorerID, addresses, p.addressBatchSize)
			return raws, len(raws), err
		},
		func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error) {
			addrs, rejections := validate.Addresses(raws, coin.Symbol)
			p.logRejections(scope, rejections)
			res, err := p.store.UpsertAddresses(ctx, addrs)
			return res, len(rejections), err
		})
}

// IngestDailyPrices ingests one day's market snapshot for every coin in one
// run. Coins whose snapshot carries no market data still count as processed.
func (p *Pipeline) IngestDailyPrices(ctx context.Context, coins []model.CoinInfo, date time.Time) model.Result {
	day := clock.Midnight(date)
	scope := model.Scope{
		Source:     model.SourceCoingecko,
		Family:     model.FamilyPrices,
		TargetDate: &day,
	}

	coinIDs := make([]string, 0, len(coins))
	for _, coin := range coins {
		if coin.AggregatorID != "" {
			coinIDs = append(coinIDs, coin.AggregatorID)
		}
	}

	return p.run(ctx, scope,
		func(ctx context.Context) ([]model.Raw, int, error) {
			return p.prices.DailyPrices(ctx, coinIDs, day)
		},
		func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error) {
			points, rejections := validate.Prices(raws, p.now())
			p.logRejections(scope, rejections)
			res, err := p.store.UpsertPrices(ctx, points)
			return res, len(rejections), err
		})
}

type (
	fetchFunc func(ctx context.Context) ([]model.Raw, int, error)
	applyFunc func(ctx context.Context, raws []model.Raw) (model.UpsertResult, int, error)
)

func (p *Pipeline) run(ctx context.Context, scope model.Scope, fetch fetchFunc, apply applyFunc) model.Result {
	started := time.Now()
	res := model.Result{Scope: scope}

	runID, err := p.store.BeginRun(ctx, scope)
	if err != nil {
		p.logger.Error("begin run failed", zap.Stringer("scope", scope), zap.Error(err))
		res.Err = err.Error()
		return res
	}

	finalize := func(status model.RunStatus, counts model.RunCounts, msg string) {
		if ferr := p.store.FinalizeRun(ctx, runID, status, counts, msg); ferr != nil {
			p.logger.Error("finalize run failed",
				zap.Int64("run_id", runID),
				zap.Stringer("scope", scope),
				zap.Error(ferr))
		}
		p.metrics.ObserveRun(scope, status, started)
	}

	raws, attempted, err := fetch(ctx)
	if err != nil {
		p.logger.Error("fetch failed", zap.Stringer("scope", scope), zap.Error(err))
		finalize(model.RunFailed, model.RunCounts{}, err.Error())
		res.Err = err.Error()
		return res
	}
	if attempted == 0 {
		msg := "no data received"
		p.logger.Warn(msg, zap.Stringer("scope", scope))
		finalize(model.RunFailed, model.RunCounts{}, msg)
		res.Err = msg
		return res
	}

	upserted, rejected, err := apply(ctx, raws)
	if err != nil {
		p.logger.Error("upsert failed", zap.Stringer("scope", scope), zap.Error(err))
		finalize(model.RunFailed, model.RunCounts{Processed: attempted}, err.Error())
		res.Processed = attempted
		res.Err = err.Error()
		return res
	}

	for _, warn := range upserted.Skipped {
		p.logger.Warn("record skipped",
			zap.Stringer("scope", scope),
			zap.String("key", warn.Key),
			zap.String("reason", warn.Reason))
	}

	res.Processed = attempted
	res.Rejected = rejected
	res.Inserted = upserted.Inserted
	res.Updated = upserted.Updated

	counts := model.RunCounts{
		Processed: attempted,
		Inserted:  upserted.Inserted,
		Updated:   upserted.Updated,
	}

	status := model.RunSuccess
	res.Success = true
	msg := ""
	if upserted.Inserted+upserted.Updated == 0 {
		status = model.RunPartial
		res.Success = false
		msg = "no records inserted or updated"
		res.Err = msg
	}

	finalize(status, counts, msg)
	p.metrics.ObserveRecords(scope, upserted.Inserted, upserted.Updated, rejected, len(upserted.Skipped))

	p.logger.Info("run finished",
		zap.Stringer("scope", scope),
		zap.String("status", string(status)),
		zap.Int("processed", res.Processed),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("rejected", res.Rejected))
	return res
}

func (p *Pipeline) logRejections(scope model.Scope, rejections []validate.Rejection) {
	for _, rej := range rejections {
		p.logger.Warn("record rejected",
			zap.Stringer("scope", scope),
			zap.Int("index", rej.Index),
			zap.String("field", rej.Field),
			zap.String("reason", string(rej.Reason)))
	}
}
