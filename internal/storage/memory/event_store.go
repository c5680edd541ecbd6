package memory

import (
	"context"
	"sort"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.Event // keyed by seq
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[uint64]*domain.Event),
	}
}

// InsertBulk appends events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := storage.ValidateEvents(events); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for existing keys
	for _, e := range events {
		if _, exists := s.data[e.Seq]; exists {
			return storage.ErrDuplicateKey
		}
	}

	// Second pass: insert all
	for _, e := range events {
		s.data[e.Seq] = e.Clone()
	}

	return nil
}

// GetSince retrieves events with seq > afterSeq, ordered by seq ASC.
func (s *EventStore) GetSince(_ context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for seq, e := range s.data {
		if seq > afterSeq {
			result = append(result, e.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// LastSeq returns the highest stored seq, or 0 when empty.
func (s *EventStore) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for seq := range s.data {
		if seq > last {
			last = seq
		}
	}
	return last, nil
}

var _ storage.EventStore = (*EventStore)(nil)
