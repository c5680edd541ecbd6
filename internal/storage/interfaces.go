package storage

import (
	"context"

	"token-ledger/internal/domain"
)

// GenesisStore provides access to the ledger_genesis record.
type GenesisStore interface {
	// Insert stores the genesis record. Returns ErrDuplicateKey if one already exists.
	Insert(ctx context.Context, g *domain.Genesis) error

	// Get retrieves the genesis record. Returns ErrNotFound if none was stored.
	Get(ctx context.Context) (*domain.Genesis, error)
}

// EventStore provides access to the ledger_events journal.
type EventStore interface {
	// InsertBulk appends events atomically. Fails entire batch if any seq already exists
	// or repeats within the batch.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetSince retrieves events with seq > afterSeq, ordered by seq ASC.
	// A limit <= 0 means no limit.
	GetSince(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error)

	// LastSeq returns the highest stored seq, or 0 when the journal is empty.
	LastSeq(ctx context.Context) (uint64, error)
}
