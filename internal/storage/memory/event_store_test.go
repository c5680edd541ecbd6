package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

var (
	alice = domain.MustParseAccount("0x00000000000000000000000000000000000000a1")
	bob   = domain.MustParseAccount("0x00000000000000000000000000000000000000b2")
)

func testEvent(seq uint64) *domain.Event {
	return &domain.Event{
		Seq:         seq,
		Kind:        domain.EventKindTransfer,
		From:        alice,
		To:          bob,
		Value:       uint256.NewInt(seq * 10),
		CommittedAt: 1704067200000 + int64(seq),
	}
}

func TestEventStore_InsertBulkAndGetSince(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.Event{testEvent(3), testEvent(1), testEvent(2)}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetSince(ctx, 0, 0)
	if err != nil {
		t.Fatalf("GetSince failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(result))
	}
	for i, e := range result {
		if e.Seq != uint64(i+1) {
			t.Errorf("Event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}

	tail, err := store.GetSince(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetSince failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Errorf("Expected [seq 2], got %v", tail)
	}
}

func TestEventStore_LastSeq(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	last, err := store.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq failed: %v", err)
	}
	if last != 0 {
		t.Errorf("Expected 0 for empty store, got %d", last)
	}

	if err := store.InsertBulk(ctx, []*domain.Event{testEvent(1), testEvent(2)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	last, _ = store.LastSeq(ctx)
	if last != 2 {
		t.Errorf("Expected 2, got %d", last)
	}
}

func TestEventStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Event{testEvent(1)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Event{testEvent(2), testEvent(1)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// seq 2 must not have been stored
	last, _ := store.LastSeq(ctx)
	if last != 1 {
		t.Errorf("Expected batch to be rejected atomically, last seq %d", last)
	}
}

func TestEventStore_IntraBatchDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Event{testEvent(1), testEvent(1)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventStore_InvalidInput(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Event{nil})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.Event{testEvent(0)})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero seq, got %v", err)
	}

	bad := testEvent(1)
	bad.Kind = "Mint"
	err = store.InsertBulk(ctx, []*domain.Event{bad})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

func TestEventStore_ReturnsCopy(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := testEvent(1)
	if err := store.InsertBulk(ctx, []*domain.Event{e}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Modify original
	e.Value.SetUint64(999)

	result, _ := store.GetSince(ctx, 0, 0)
	if result[0].Value.Uint64() != 10 {
		t.Error("Store should keep a copy, not a reference")
	}

	result[0].Value.SetUint64(555)
	again, _ := store.GetSince(ctx, 0, 0)
	if again[0].Value.Uint64() != 10 {
		t.Error("Store should return a copy, not a reference")
	}
}
