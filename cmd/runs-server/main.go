package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/metrics"
	"github.com/coinforge/cryptoetl-backend/internal/repository/postgres"
	"github.com/coinforge/cryptoetl-backend/internal/transport"
)

var config struct {
	PostgresDSN string `long:"postgres-dsn" env:"RUNS_SERVER_POSTGRES_DSN" description:"Postgres DSN"`
	Addr        string `long:"addr" env:"RUNS_SERVER_ADDR" description:"listen address" default:":8080"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&config, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if config.PostgresDSN == "" {
		logger.Fatal("Postgres DSN is required")
	}

	db, err := postgres.Open(config.PostgresDSN)
	if err != nil {
		logger.Fatal("init postgres connection", zap.Error(err))
	}
	repo, err := postgres.NewRepository(db, metrics.NewPostgresRepository())
	if err != nil {
		logger.Fatal("init repository", zap.Error(err))
	}
	handler, err := transport.NewRunsHandler(repo, logger)
	if err != nil {
		logger.Fatal("init runs handler", zap.Error(err))
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              config.Addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("starting http server", zap.String("addr", config.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to listen and serve", zap.Error(err))
	}
}
