// Package main deploys a token: it constructs the ledger from config,
// records its genesis in the journal and prints the resulting metadata.
//
// Deploying against a journal that already holds the same token is a no-op
// that reports the existing deployment; a different token is an error.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"token-ledger/internal/config"
	"token-ledger/internal/journal"
	"token-ledger/internal/ledger"
	"token-ledger/internal/logging"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/memory"
	"token-ledger/internal/storage/migrations"
	pgstore "token-ledger/internal/storage/postgres"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Parse("deploy", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	genesis, events, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	engine, created, err := journal.Bootstrap(ctx, genesis, events, cfg.Genesis(time.Now()))
	if err != nil {
		logger.Fatal("deploy token", zap.Error(err))
	}

	printDeployment(os.Stdout, engine, created)
}

func openStores(ctx context.Context, cfg *config.Config) (storage.GenesisStore, storage.EventStore, func(), error) {
	if cfg.UseMemory {
		return memory.NewGenesisStore(), memory.NewEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pgstore.NewGenesisStore(pool), pgstore.NewEventStore(pool), pool.Close, nil
}

func printDeployment(w io.Writer, e *ledger.Engine, created bool) {
	meta := e.Metadata()
	g := e.Genesis()

	if created {
		fmt.Fprintln(w, "Token deployed")
	} else {
		fmt.Fprintln(w, "Token already deployed")
	}
	fmt.Fprintf(w, "  name:         %s\n", meta.Name)
	fmt.Fprintf(w, "  symbol:       %s\n", meta.Symbol)
	fmt.Fprintf(w, "  decimals:     %d\n", meta.Decimals)
	fmt.Fprintf(w, "  total supply: %s\n", meta.TotalSupply.Dec())
	fmt.Fprintf(w, "  deployer:     %s\n", g.Deployer)
	fmt.Fprintf(w, "  balance:      %s\n", e.BalanceOf(g.Deployer).Dec())
	fmt.Fprintf(w, "  events:       %d\n", e.Log().Len())
}
