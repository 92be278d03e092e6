package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/metrics"
	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/internal/repository/postgres"
	"github.com/coinforge/cryptoetl-backend/internal/service/ingester"
	"github.com/coinforge/cryptoetl-backend/internal/source/blockchair"
	"github.com/coinforge/cryptoetl-backend/internal/source/coingecko"
)

type config struct {
	PostgresDSN     string        `long:"postgres-dsn" env:"INGESTER_POSTGRES_DSN" description:"Postgres DSN"`
	BlockchairURL   string        `long:"blockchair-url" env:"INGESTER_BLOCKCHAIR_URL" description:"Blockchair API base URL" default:"https://api.blockchair.com"`
	BlockchairRPS   int           `long:"blockchair-rps" env:"INGESTER_BLOCKCHAIR_RPS" description:"Blockchair requests per second" default:"5"`
	CoingeckoURL    string        `long:"coingecko-url" env:"INGESTER_COINGECKO_URL" description:"CoinGecko API base URL" default:"https://api.coingecko.com/api/v3"`
	CoingeckoAPIKey string        `long:"coingecko-api-key" env:"INGESTER_COINGECKO_API_KEY" description:"CoinGecko pro API key"`
	CoingeckoRPM    int           `long:"coingecko-rpm" env:"INGESTER_COINGECKO_RPM" description:"CoinGecko requests per minute" default:"30"`
	HTTPTimeout     time.Duration `long:"http-timeout" env:"INGESTER_HTTP_TIMEOUT" description:"HTTP timeout for source requests" default:"30s"`
	Date            string        `long:"date" env:"INGESTER_DATE" description:"target day as YYYY-MM-DD, defaults to yesterday UTC"`
	Coin            string        `long:"coin" env:"INGESTER_COIN" description:"coin symbol for the ad-hoc modes below"`
	Addresses       []string      `long:"address" env:"INGESTER_ADDRESSES" env-delim:"," description:"ingest snapshots for these addresses instead of the daily run"`
	BlockRange      bool          `long:"block-range" env:"INGESTER_BLOCK_RANGE" description:"ingest blocks by height range instead of the daily run"`
	BlockStart      int64         `long:"block-start" env:"INGESTER_BLOCK_START" description:"first height for --block-range, negative means tip minus span" default:"-1"`
	BlockEnd        int64         `long:"block-end" env:"INGESTER_BLOCK_END" description:"last height for --block-range, negative means chain tip" default:"-1"`
	SeedCatalog     bool          `long:"seed-catalog" env:"INGESTER_SEED_CATALOG" description:"upsert the built-in coin catalog before ingesting"`
	StaleAfter      time.Duration `long:"stale-after" env:"INGESTER_STALE_AFTER" description:"mark running runs older than this as failed" default:"6h"`
	MetricsAddr     string        `long:"metrics-addr" env:"INGESTER_METRICS_ADDR" description:"address for metrics server" default:":2112"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if cfg.PostgresDSN == "" {
		logger.Fatal("Postgres DSN is required")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("daily ingester failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	date, err := targetDate(cfg.Date)
	if err != nil {
		return err
	}

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("init postgres connection: %w", err)
	}
	repo, err := postgres.NewRepository(db, metrics.NewPostgresRepository())
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	explorer, err := blockchair.NewClient(
		cfg.BlockchairURL,
		cfg.HTTPTimeout,
		cfg.BlockchairRPS,
		metrics.NewSourceClient(model.SourceBlockchair),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init blockchair client: %w", err)
	}
	prices, err := coingecko.NewClient(
		cfg.CoingeckoURL,
		cfg.CoingeckoAPIKey,
		cfg.HTTPTimeout,
		cfg.CoingeckoRPM,
		metrics.NewSourceClient(model.SourceCoingecko),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init coingecko client: %w", err)
	}

	pipeline, err := ingester.NewPipeline(repo, explorer, prices, metrics.NewPipeline(), logger)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	driver, err := ingester.NewDriver(pipeline, repo, logger)
	if err != nil {
		return fmt.Errorf("init driver: %w", err)
	}

	if cfg.SeedCatalog {
		for _, info := range ingester.DefaultCatalog() {
			if err := repo.UpsertCoin(ctx, info); err != nil {
				return fmt.Errorf("seed coin %s: %w", info.Symbol, err)
			}
		}
	}

	if cfg.StaleAfter > 0 {
		swept, err := repo.SweepStaleRuns(ctx, cfg.StaleAfter)
		if err != nil {
			return fmt.Errorf("sweep stale runs: %w", err)
		}
		if swept > 0 {
			logger.Warn("abandoned stale runs", zap.Int64("count", swept))
		}
	}

	active, err := repo.ActiveCoins(ctx)
	if err != nil {
		return fmt.Errorf("load active coins: %w", err)
	}
	if len(active) == 0 {
		logger.Warn("no coins enabled in the store, using built-in catalog")
	}
	coins := ingester.CoinsOrDefault(active)

	if len(cfg.Addresses) > 0 {
		coin, err := findCoin(coins, model.Coin(cfg.Coin))
		if err != nil {
			return err
		}
		return reportResult(logger, pipeline.IngestAddresses(ctx, coin, cfg.Addresses))
	}
	if cfg.BlockRange {
		coin, err := findCoin(coins, model.Coin(cfg.Coin))
		if err != nil {
			return err
		}
		return reportResult(logger, pipeline.IngestBlocksByRange(ctx, coin, cfg.BlockStart, cfg.BlockEnd))
	}

	logger.Info("starting daily ingestion",
		zap.Time("date", date),
		zap.Int("coins", len(coins)),
	)

	results, err := driver.RunDaily(ctx, coins, date)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	logger.Info("daily ingestion finished",
		zap.Int("runs", len(results)),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d ingestion runs did not succeed", failed, len(results))
	}
	return nil
}

func findCoin(coins []model.CoinInfo, symbol model.Coin) (model.CoinInfo, error) {
	if symbol == "" {
		return model.CoinInfo{}, errors.New("--coin is required for this mode")
	}
	for _, coin := range coins {
		if coin.Symbol == symbol {
			return coin, nil
		}
	}
	return model.CoinInfo{}, fmt.Errorf("coin %s is not enabled for ingestion", symbol)
}

func reportResult(logger *zap.Logger, res model.Result) error {
	logger.Info("run finished",
		zap.Stringer("scope", res.Scope),
		zap.Bool("success", res.Success),
		zap.Int("processed", res.Processed),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
	)
	if !res.Success {
		return fmt.Errorf("ingestion run did not succeed: %s", res.Err)
	}
	return nil
}

func targetDate(raw string) (time.Time, error) {
	if raw == "" {
		return clock.Today().AddDate(0, 0, -1), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return date, nil
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
