// Package main runs the token ledger daemon:
// - Ledger: recovered from the journal, or constructed from config on first start
// - Exporter (continuous): copies committed events into PostgreSQL and ClickHouse
// - HTTP: JSON API, WebSocket feed, /health, /status and /metrics
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-ledger/internal/config"
	"token-ledger/internal/feed"
	"token-ledger/internal/httpapi"
	"token-ledger/internal/journal"
	"token-ledger/internal/ledger"
	"token-ledger/internal/logging"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
	chstore "token-ledger/internal/storage/clickhouse"
	"token-ledger/internal/storage/memory"
	"token-ledger/internal/storage/migrations"
	pgstore "token-ledger/internal/storage/postgres"
)

const (
	shutdownTimeout     = 30 * time.Second
	limiterCleanupEvery = 5 * time.Minute
)

// stores holds the journal backends selected by config.
type stores struct {
	genesis storage.GenesisStore
	sinks   []journal.Sink
}

// primary is the store the ledger is recovered from.
func (s *stores) primary() storage.EventStore {
	return s.sinks[0].Store
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Parse("ledgerd", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ledgerd stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
			os.Exit(1)
		case <-done:
		}
	}()

	st, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	metrics := observability.DefaultMetrics

	engine, created, err := journal.Bootstrap(ctx, st.genesis, st.primary(), cfg.Genesis(time.Now()),
		ledger.WithObserver(metrics))
	if err != nil {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}
	meta := engine.Metadata()
	logger.Info("ledger ready",
		zap.Bool("created", created),
		zap.String("name", meta.Name),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
		zap.String("total_supply", meta.TotalSupply.Dec()),
		zap.Uint64("last_seq", engine.Log().LastSeq()),
	)

	exporter := journal.NewExporter(journal.ExporterOptions{
		Source:        engine.Log(),
		Sinks:         st.sinks,
		RetryInterval: cfg.ExportInterval,
		Metrics:       metrics,
		Logger:        logger,
	})

	feedHandler := feed.NewHandler(feed.Options{
		Source:  engine.Log(),
		Metrics: metrics,
		Logger:  logger,
	})

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, metrics, logger.Named("ratelimit"))
	limiter.StartCleanup(ctx, limiterCleanupEvery)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewHandler(httpapi.Options{
			Engine:      engine,
			Feed:        feedHandler,
			RateLimiter: limiter,
			Metrics:     metrics,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := exporter.Run(gctx); err != nil {
			return fmt.Errorf("exporter: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		feedHandler.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	runErr := g.Wait()

	// No more writes arrive once the HTTP server is down; drain what is left.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := exporter.Flush(flushCtx); err != nil {
		logger.Error("final journal flush failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// createStores opens the configured journal backends and applies migrations.
func createStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	if cfg.UseMemory {
		return &stores{
			genesis: memory.NewGenesisStore(),
			sinks:   []journal.Sink{{Name: "memory", Store: memory.NewEventStore()}},
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		genesis: pgstore.NewGenesisStore(pool),
		sinks:   []journal.Sink{{Name: "postgres", Store: pgstore.NewEventStore(pool)}},
	}

	if cfg.ClickhouseDSN == "" {
		return st, pool.Close, nil
	}

	// ClickHouse mirror
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st.sinks = append(st.sinks, journal.Sink{Name: "clickhouse", Store: chstore.NewEventStore(chConn)})

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}
