package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/memory"
)

var (
	deployer = domain.MustParseAccount("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	receiver = domain.MustParseAccount("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	exchange = domain.MustParseAccount("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

func testGenesis() *domain.Genesis {
	return &domain.Genesis{
		Name:          "GeneralHQ",
		Symbol:        "GHQ",
		Decimals:      18,
		InitialSupply: uint256.NewInt(1_000_000),
		Deployer:      deployer,
		CreatedAt:     1704067200000,
	}
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

// runWorkload commits a mix of direct, approved and delegated operations.
func runWorkload(t *testing.T, e *ledger.Engine) {
	t.Helper()
	_, err := e.Transfer(deployer, receiver, uint256.NewInt(50))
	require.NoError(t, err)
	_, err = e.Approve(deployer, exchange, uint256.NewInt(100))
	require.NoError(t, err)
	_, err = e.TransferFrom(exchange, deployer, receiver, uint256.NewInt(60))
	require.NoError(t, err)
	_, err = e.Transfer(receiver, exchange, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = e.Transfer(receiver, exchange, uint256.NewInt(1_000_000))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

// flakyStore fails the first n InsertBulk calls.
type flakyStore struct {
	storage.EventStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	s.mu.Unlock()
	return s.EventStore.InsertBulk(ctx, events)
}

func waitForSeq(t *testing.T, store storage.EventStore, seq uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		last, err := store.LastSeq(context.Background())
		return err == nil && last == seq
	}, 2*time.Second, 5*time.Millisecond, "store never reached seq %d", seq)
}

func TestExporter_Flush(t *testing.T) {
	e, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)
	runWorkload(t, e)

	store := memory.NewEventStore()
	x := NewExporter(ExporterOptions{
		Source:    e.Log(),
		Sinks:     []Sink{{Name: "memory", Store: store}},
		BatchSize: 2,
		Metrics:   testMetrics(),
	})
	require.NoError(t, x.Flush(context.Background()))

	stored, err := store.GetSince(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for i, ev := range e.Events() {
		assert.True(t, ev.SameRecord(stored[i]), "event %d", i)
	}

	// Idempotent once caught up
	require.NoError(t, x.Flush(context.Background()))
}

func TestExporter_RunTailsLog(t *testing.T) {
	e, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)

	primary := memory.NewEventStore()
	mirror := memory.NewEventStore()
	x := NewExporter(ExporterOptions{
		Source:        e.Log(),
		Sinks:         []Sink{{Name: "primary", Store: primary}, {Name: "mirror", Store: mirror}},
		RetryInterval: 10 * time.Millisecond,
		Metrics:       testMetrics(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- x.Run(ctx) }()

	runWorkload(t, e)
	waitForSeq(t, primary, 4)
	waitForSeq(t, mirror, 4)

	_, err = e.Transfer(deployer, exchange, uint256.NewInt(1))
	require.NoError(t, err)
	waitForSeq(t, primary, 5)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("exporter did not stop")
	}
}

func TestExporter_RetriesFailedBatch(t *testing.T) {
	e, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)
	runWorkload(t, e)

	metrics := testMetrics()
	store := &flakyStore{EventStore: memory.NewEventStore(), failures: 2}
	x := NewExporter(ExporterOptions{
		Source:        e.Log(),
		Sinks:         []Sink{{Name: "flaky", Store: store}},
		RetryInterval: 5 * time.Millisecond,
		Metrics:       metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go x.Run(ctx)

	waitForSeq(t, store, 4)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.ExportErrors.WithLabelValues("flaky")) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestExporter_ResumesFromStore(t *testing.T) {
	e, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)
	runWorkload(t, e)

	store := memory.NewEventStore()
	require.NoError(t, store.InsertBulk(context.Background(), e.EventsSince(0, 2)))

	x := NewExporter(ExporterOptions{
		Source:  e.Log(),
		Sinks:   []Sink{{Name: "memory", Store: store}},
		Metrics: testMetrics(),
	})
	require.NoError(t, x.Flush(context.Background()))

	last, err := store.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), last)
}

func TestExporter_StoreAhead(t *testing.T) {
	e, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)

	other, err := ledger.NewFromGenesis(testGenesis())
	require.NoError(t, err)
	runWorkload(t, other)

	store := memory.NewEventStore()
	require.NoError(t, store.InsertBulk(context.Background(), other.Events()))

	x := NewExporter(ExporterOptions{
		Source:  e.Log(),
		Sinks:   []Sink{{Name: "memory", Store: store}},
		Metrics: testMetrics(),
	})
	err = x.Run(context.Background())
	assert.ErrorIs(t, err, ErrStoreAhead)
}

func TestRecover_ReproducesState(t *testing.T) {
	ctx := context.Background()
	genesisStore := memory.NewGenesisStore()
	eventStore := memory.NewEventStore()

	original, created, err := Bootstrap(ctx, genesisStore, eventStore, testGenesis())
	require.NoError(t, err)
	assert.True(t, created)
	runWorkload(t, original)

	x := NewExporter(ExporterOptions{
		Source:  original.Log(),
		Sinks:   []Sink{{Name: "memory", Store: eventStore}},
		Metrics: testMetrics(),
	})
	require.NoError(t, x.Flush(ctx))

	recovered, created, err := Bootstrap(ctx, genesisStore, eventStore, testGenesis())
	require.NoError(t, err)
	assert.False(t, created)

	for _, a := range []domain.Account{deployer, receiver, exchange} {
		assert.True(t, original.BalanceOf(a).Eq(recovered.BalanceOf(a)), "balance of %s", a)
	}
	assert.Equal(t, "40", recovered.AllowanceOf(deployer, exchange).Dec())
	assert.Equal(t, len(original.Events()), len(recovered.Events()))
	assert.True(t, recovered.Conserved())
}

func TestRecover_Paginates(t *testing.T) {
	ctx := context.Background()
	genesisStore := memory.NewGenesisStore()
	eventStore := memory.NewEventStore()

	e, _, err := Bootstrap(ctx, genesisStore, eventStore, testGenesis())
	require.NoError(t, err)
	for i := 0; i < recoverPageSize+5; i++ {
		_, err := e.Transfer(deployer, receiver, uint256.NewInt(1))
		require.NoError(t, err)
	}
	require.NoError(t, eventStore.InsertBulk(ctx, e.Events()))

	recovered, err := Recover(ctx, genesisStore, eventStore)
	require.NoError(t, err)
	assert.Equal(t, uint64(recoverPageSize+5), recovered.BalanceOf(receiver).Uint64())
}

func TestRecover_NoGenesis(t *testing.T) {
	_, err := Recover(context.Background(), memory.NewGenesisStore(), memory.NewEventStore())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecover_TamperedJournal(t *testing.T) {
	ctx := context.Background()
	genesisStore := memory.NewGenesisStore()
	eventStore := memory.NewEventStore()

	e, _, err := Bootstrap(ctx, genesisStore, eventStore, testGenesis())
	require.NoError(t, err)
	runWorkload(t, e)

	// Delegated transfer of more than the approved 100
	events := e.Events()
	events[2].Value = uint256.NewInt(200)
	require.NoError(t, eventStore.InsertBulk(ctx, events))

	_, err = Recover(ctx, genesisStore, eventStore)
	assert.ErrorIs(t, err, ledger.ErrJournalMismatch)
}

func TestBootstrap_GenesisMismatch(t *testing.T) {
	ctx := context.Background()
	genesisStore := memory.NewGenesisStore()
	eventStore := memory.NewEventStore()

	_, _, err := Bootstrap(ctx, genesisStore, eventStore, testGenesis())
	require.NoError(t, err)

	other := testGenesis()
	other.Symbol = "OTHER"
	_, _, err = Bootstrap(ctx, genesisStore, eventStore, other)
	assert.ErrorIs(t, err, ErrGenesisMismatch)

	// CreatedAt is not part of the token identity
	later := testGenesis()
	later.CreatedAt++
	_, created, err := Bootstrap(ctx, genesisStore, eventStore, later)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestBootstrap_InvalidGenesisNotStored(t *testing.T) {
	ctx := context.Background()
	genesisStore := memory.NewGenesisStore()

	bad := testGenesis()
	bad.Decimals = 78
	_, _, err := Bootstrap(ctx, genesisStore, memory.NewEventStore(), bad)
	assert.ErrorIs(t, err, ledger.ErrOverflow)

	_, err = genesisStore.Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
