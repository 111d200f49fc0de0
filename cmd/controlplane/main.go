package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firezone/firezone-sub013/internal/api"
	"github.com/firezone/firezone-sub013/internal/config"
	"github.com/firezone/firezone-sub013/internal/db"
	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/events/hooks"
	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/logging"
	"github.com/firezone/firezone-sub013/internal/metrics"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	if *migrateFlag {
		logger.Info().Str("dir", cfg.MigrationsDir).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPoolMetrics(pool)

	bus := pubsub.New()
	store := flow.NewStore(pool)
	engine := flow.NewEngine(pool, store, logger)
	sweeper := flow.NewSweepRunner(engine, cfg.FlowSweepInterval, logger)

	sessions := hooks.NewPostgresSessionIndex(pool)
	dispatcher := events.NewDispatcher(
		events.NewPostgresSource(pool),
		hooks.New(store, bus, sessions, logger).All(),
		cfg.ChangePollInterval,
		logger,
	)

	apiServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      api.NewServer(logger, pool, engine, bus).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := metrics.NewServer(cfg.MetricsAddr, pool)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		apiServer.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("control plane exited")
	}
	logger.Info().Msg("shut down cleanly")
}
