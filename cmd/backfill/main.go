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

	"github.com/coinforge/cryptoetl-backend/internal/metrics"
	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/internal/repository/postgres"
	"github.com/coinforge/cryptoetl-backend/internal/service/ingester"
	"github.com/coinforge/cryptoetl-backend/internal/source/blockchair"
	"github.com/coinforge/cryptoetl-backend/internal/source/coingecko"
)

type config struct {
	PostgresDSN     string        `long:"postgres-dsn" env:"BACKFILL_POSTGRES_DSN" description:"Postgres DSN"`
	BlockchairURL   string        `long:"blockchair-url" env:"BACKFILL_BLOCKCHAIR_URL" description:"Blockchair API base URL" default:"https://api.blockchair.com"`
	BlockchairRPS   int           `long:"blockchair-rps" env:"BACKFILL_BLOCKCHAIR_RPS" description:"Blockchair requests per second" default:"5"`
	CoingeckoURL    string        `long:"coingecko-url" env:"BACKFILL_COINGECKO_URL" description:"CoinGecko API base URL" default:"https://api.coingecko.com/api/v3"`
	CoingeckoAPIKey string        `long:"coingecko-api-key" env:"BACKFILL_COINGECKO_API_KEY" description:"CoinGecko pro API key"`
	CoingeckoRPM    int           `long:"coingecko-rpm" env:"BACKFILL_COINGECKO_RPM" description:"CoinGecko requests per minute" default:"30"`
	HTTPTimeout     time.Duration `long:"http-timeout" env:"BACKFILL_HTTP_TIMEOUT" description:"HTTP timeout for source requests" default:"30s"`
	From            string        `long:"from" env:"BACKFILL_FROM" description:"first day of the window as YYYY-MM-DD" required:"true"`
	To              string        `long:"to" env:"BACKFILL_TO" description:"last day of the window as YYYY-MM-DD" required:"true"`
	MetricsAddr     string        `long:"metrics-addr" env:"BACKFILL_METRICS_ADDR" description:"address for metrics server" default:":2113"`
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
		logger.Fatal("price backfill failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	from, err := time.Parse("2006-01-02", cfg.From)
	if err != nil {
		return fmt.Errorf("parse from date %q: %w", cfg.From, err)
	}
	to, err := time.Parse("2006-01-02", cfg.To)
	if err != nil {
		return fmt.Errorf("parse to date %q: %w", cfg.To, err)
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

	active, err := repo.ActiveCoins(ctx)
	if err != nil {
		return fmt.Errorf("load active coins: %w", err)
	}
	if len(active) == 0 {
		logger.Warn("no coins enabled in the store, using built-in catalog")
	}
	coins := ingester.CoinsOrDefault(active)

	logger.Info("starting price backfill",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("coins", len(coins)),
	)

	results, err := driver.BackfillPrices(ctx, coins, from, to)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	logger.Info("price backfill finished",
		zap.Int("runs", len(results)),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d backfill runs did not succeed", failed, len(results))
	}
	return nil
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
