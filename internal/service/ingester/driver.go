package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/pkg/workerpool"
)

// Driver schedules pipeline runs: the daily fan-out over coins and the
// trailing-window price backfill.
type Driver struct {
	ingestor    Ingestor
	store       Store
	logger      *zap.Logger
	workerCount int
}

// NewDriver builds a Driver.
func NewDriver(ingestor Ingestor, store Store, logger *zap.Logger) (*Driver, error) {
	if ingestor == nil {
		return nil, errors.New("driver ingestor is required")
	}
	if store == nil {
		return nil, errors.New("driver store is required")
	}
	if logger == nil {
		return nil, errors.New("driver logger is required")
	}

	return &Driver{
		ingestor:    ingestor,
		store:       store,
		logger:      logger.Named("driver"),
		workerCount: defaultWorkerCount,
	}, nil
}

type dailyTask struct {
	family model.Family
	coin   model.CoinInfo
	coins  []model.CoinInfo
	date   time.Time
}

// RunDaily ingests blocks and transactions per coin plus one combined price
// run, all for a single calendar day. Per-coin failures are reported in the
// results, not as an error; only context cancellation aborts the fan-out.
func (d *Driver) RunDaily(ctx context.Context, coins []model.CoinInfo, date time.Time) ([]model.Result, error) {
	if len(coins) == 0 {
		return nil, errors.New("no coins to ingest")
	}
	day := clock.Midnight(date)

	tasks := make([]dailyTask, 0, 2*len(coins)+1)
	for _, coin := range coins {
		tasks = append(tasks,
			dailyTask{family: model.FamilyBlocks, coin: coin, date: day},
			dailyTask{family: model.FamilyTransactions, coin: coin, date: day},
		)
	}
	tasks = append(tasks, dailyTask{family: model.FamilyPrices, coins: coins, date: day})

	d.logger.Info("starting daily ingestion",
		zap.String("date", day.Format("2006-01-02")),
		zap.Int("coins", len(coins)),
		zap.Int("tasks", len(tasks)))

	results, err := workerpool.Map(ctx, d.workerCount, tasks, func(ctx context.Context, task dailyTask) model.Result {
		switch task.family {
		case model.FamilyBlocks:
			return d.ingestor.IngestBlocksByDate(ctx, task.coin, task.date)
		case model.FamilyTransactions:
			return d.ingestor.IngestTransactionsByDate(ctx, task.coin, task.date)
		case model.FamilyPrices:
			return d.ingestor.IngestDailyPrices(ctx, task.coins, task.date)
		default:
			return model.Result{Err: fmt.Sprintf("unknown family %q", task.family)}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("daily ingestion: %w", err)
	}

	d.logger.Info("daily ingestion finished", zap.Int("runs", len(results)))
	return results, nil
}

// BackfillPrices fills missing daily price points over [from, to]. Days
// already stored for every coin are skipped; each remaining day becomes one
// price run restricted to the coins missing it.
func (d *Driver) BackfillPrices(ctx context.Context, coins []model.CoinInfo, from, to time.Time) ([]model.Result, error) {
	if len(coins) == 0 {
		return nil, errors.New("no coins to backfill")
	}
	start := clock.Midnight(from)
	end := clock.Midnight(to)
	if start.After(end) {
		return nil, fmt.Errorf("invalid backfill window %s-%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	existing, err := d.store.ExistingPriceDates(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("backfill prices: %w", err)
	}

	covered := make(map[string]map[time.Time]bool, len(existing))
	for coinID, dates := range existing {
		days := make(map[time.Time]bool, len(dates))
		for _, date := range dates {
			days[clock.Midnight(date)] = true
		}
		covered[coinID] = days
	}

	var results []model.Result
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		missing := make([]model.CoinInfo, 0, len(coins))
		for _, coin := range coins {
			if !covered[coin.AggregatorID][day] {
				missing = append(missing, coin)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		d.logger.Info("backfilling prices",
			zap.String("date", day.Format("2006-01-02")),
			zap.Int("coins", len(missing)))
		results = append(results, d.ingestor.IngestDailyPrices(ctx, missing, day))
	}

	d.logger.Info("price backfill finished", zap.Int("runs", len(results)))
	return results, nil
}
