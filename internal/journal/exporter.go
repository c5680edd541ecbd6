// Package journal makes the in-process ledger durable: the Exporter copies
// committed events into journal stores, and Recover rebuilds an engine
// from what those stores hold.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
)

// Source is the committed event log an Exporter tails. *ledger.EventLog satisfies it.
type Source interface {
	Since(afterSeq uint64, limit int) []*domain.Event
	LastSeq() uint64
	Changed() <-chan struct{}
}

var _ Source = (*ledger.EventLog)(nil)

// Sink is a named journal destination.
type Sink struct {
	Name  string
	Store storage.EventStore
}

// ErrStoreAhead is returned when a store holds events the ledger never committed.
var ErrStoreAhead = errors.New("journal store is ahead of the ledger")

// ExporterOptions contains configuration for creating an Exporter.
type ExporterOptions struct {
	Source        Source
	Sinks         []Sink
	BatchSize     int           // Default: 500
	RetryInterval time.Duration // Default: 1s
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// Exporter copies committed events into every sink in commit order.
type Exporter struct {
	source        Source
	sinks         []Sink
	batchSize     int
	retryInterval time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewExporter creates a new Exporter.
func NewExporter(opts ExporterOptions) *Exporter {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = time.Second
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Exporter{
		source:        opts.Source,
		sinks:         opts.Sinks,
		batchSize:     batchSize,
		retryInterval: retryInterval,
		metrics:       metrics,
		logger:        logger.Named("exporter"),
	}
}

// Run exports until ctx is cancelled. Each sink advances independently, so
// a slow analytics mirror does not hold back the primary journal.
func (x *Exporter) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range x.sinks {
		sink := sink
		g.Go(func() error {
			return x.runSink(ctx, sink)
		})
	}
	return g.Wait()
}

// Flush writes everything committed so far to every sink and returns.
func (x *Exporter) Flush(ctx context.Context) error {
	for _, sink := range x.sinks {
		cursor, err := sink.Store.LastSeq(ctx)
		if err != nil {
			return fmt.Errorf("%s: last seq: %w", sink.Name, err)
		}
		target := x.source.LastSeq()
		for cursor < target {
			next, err := x.exportBatch(ctx, sink, cursor)
			if err != nil {
				return err
			}
			cursor = next
		}
	}
	return nil
}

func (x *Exporter) runSink(ctx context.Context, sink Sink) error {
	logger := x.logger.With(zap.String("store", sink.Name))

	cursor, err := x.resume(ctx, sink, logger)
	if err != nil {
		return err
	}
	logger.Info("exporter started", zap.Uint64("resume_after", cursor))

	for {
		changed := x.source.Changed()
		if cursor >= x.source.LastSeq() {
			x.metrics.SetExporterLag(sink.Name, 0)
			select {
			case <-ctx.Done():
				logger.Info("exporter stopping", zap.Uint64("last_seq", cursor))
				return nil
			case <-changed:
				continue
			}
		}

		next, err := x.exportBatch(ctx, sink, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("export batch failed, retrying",
				zap.Uint64("after_seq", cursor),
				zap.Duration("retry_in", x.retryInterval),
				zap.Error(err),
			)
			if !sleep(ctx, x.retryInterval) {
				return nil
			}
			continue
		}
		cursor = next
		x.metrics.SetExporterLag(sink.Name, x.source.LastSeq()-cursor)
	}
}

// resume reads the sink's high-water mark, retrying until ctx is done.
func (x *Exporter) resume(ctx context.Context, sink Sink, logger *zap.Logger) (uint64, error) {
	for {
		cursor, err := sink.Store.LastSeq(ctx)
		if err == nil {
			if cursor > x.source.LastSeq() {
				return 0, fmt.Errorf("%s: %w: store at %d, ledger at %d", sink.Name, ErrStoreAhead, cursor, x.source.LastSeq())
			}
			return cursor, nil
		}
		logger.Warn("read journal position failed, retrying", zap.Error(err))
		if !sleep(ctx, x.retryInterval) {
			return 0, ctx.Err()
		}
	}
}

// exportBatch writes the next batch after cursor and returns the new cursor.
// A duplicate means another writer got there first; the cursor is re-read.
func (x *Exporter) exportBatch(ctx context.Context, sink Sink, cursor uint64) (uint64, error) {
	batch := x.source.Since(cursor, x.batchSize)
	if len(batch) == 0 {
		return cursor, nil
	}

	err := sink.Store.InsertBulk(ctx, batch)
	x.metrics.RecordExport(sink.Name, len(batch), err)
	switch {
	case err == nil:
		return batch[len(batch)-1].Seq, nil
	case errors.Is(err, storage.ErrDuplicateKey):
		last, lerr := sink.Store.LastSeq(ctx)
		if lerr != nil {
			return cursor, fmt.Errorf("%s: last seq after duplicate: %w", sink.Name, lerr)
		}
		if last <= cursor {
			return cursor, fmt.Errorf("%s: insert after %d: %w", sink.Name, cursor, err)
		}
		return last, nil
	default:
		return cursor, fmt.Errorf("%s: insert after %d: %w", sink.Name, cursor, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
