// Package main replays the journal from PostgreSQL, verifies the rebuilt
// ledger and, when a ClickHouse DSN is given, checks the mirror against it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"token-ledger/internal/config"
	"token-ledger/internal/logging"
	chstore "token-ledger/internal/storage/clickhouse"
	pgstore "token-ledger/internal/storage/postgres"
	"token-ledger/internal/verification"
)

// Result is the combined output of a replay run.
type Result struct {
	Replay *verification.ReplaySummary      `json:"replay"`
	Mirror *verification.VerificationReport `json:"mirror,omitempty"`
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv(config.EnvPostgresDSN), "PostgreSQL connection string (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv(config.EnvClickhouseDSN), "ClickHouse mirror to verify (optional)")
	pageSize := flag.Int("page-size", 1000, "Events read per query")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	logEnv := flag.String("log-env", string(logging.EnvironmentProduction), "Logger profile (production, development, local)")

	flag.Parse()

	logger, err := logging.New(logging.Config{Environment: logging.Environment(*logEnv)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Validate required flags
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	primary := pgstore.NewEventStore(pool)

	var result Result
	result.Replay, err = verification.VerifyReplay(ctx, pgstore.NewGenesisStore(pool), primary)
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("connect to clickhouse", zap.Error(err))
		}
		defer conn.Close()

		v := verification.NewMirrorVerifier(verification.MirrorVerifierOptions{
			Primary:  primary,
			Mirror:   chstore.NewEventStore(conn),
			PageSize: *pageSize,
		})
		result.Mirror, err = v.VerifyAll(ctx)
		if err != nil {
			logger.Fatal("verify mirror", zap.Error(err))
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(os.Stdout, &result)
	}

	if result.Mirror != nil && !result.Mirror.Consistent() {
		os.Exit(3)
	}
}

func printSummary(w io.Writer, r *Result) {
	s := r.Replay
	fmt.Fprintf(w, "\n=== Replay Summary ===\n")
	fmt.Fprintf(w, "Token:             %s (%s)\n", s.Name, s.Symbol)
	fmt.Fprintf(w, "Total Supply:      %s\n", s.TotalSupply)
	fmt.Fprintf(w, "Events:            %d\n", s.LastSeq)
	fmt.Fprintf(w, "Holders:           %d\n", s.Holders)
	fmt.Fprintf(w, "Conserved:         %t\n", s.Conserved)
	fmt.Fprintf(w, "Journal Digest:    %s\n", s.Digest)

	m := r.Mirror
	if m == nil {
		return
	}
	fmt.Fprintf(w, "\n=== Mirror Verification ===\n")
	fmt.Fprintf(w, "Matched:           %d/%d\n", m.MatchedEvents, m.TotalEvents)
	fmt.Fprintf(w, "Lagging:           %d\n", m.LaggingEvents)
	fmt.Fprintf(w, "Divergent:         %d\n", m.DivergentEvents)
	fmt.Fprintf(w, "Mirror Ahead:      %t\n", m.MirrorAhead)
	fmt.Fprintf(w, "Mirror Digest:     %s\n", m.MirrorDigest)
	for _, res := range m.Results {
		for _, d := range res.Divergences {
			fmt.Fprintf(w, "  seq=%d %s: expected=%v actual=%v\n", res.Seq, d.Field, d.Expected, d.Actual)
		}
	}
}
