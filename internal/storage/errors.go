package storage

import (
	"errors"

	"token-ledger/internal/domain"
)

// Storage errors for the append-only journal.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	// The journal never updates committed records.
	ErrDuplicateKey = errors.New("duplicate key: journal does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateEvents checks a batch before it reaches a backend: no nil entries,
// no zero seq, known kinds, no repeated seq within the batch.
func ValidateEvents(events []*domain.Event) error {
	seen := make(map[uint64]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Seq == 0 || !e.Kind.Valid() {
			return ErrInvalidInput
		}
		if _, exists := seen[e.Seq]; exists {
			return ErrDuplicateKey
		}
		seen[e.Seq] = struct{}{}
	}
	return nil
}
