package ledger

import (
	"sync"

	"token-ledger/internal/domain"
)

// EventLog is the append-only record of committed operations, in commit order.
// Reads are safe for concurrent use; only Engine appends.
type EventLog struct {
	mu      sync.RWMutex
	events  []*domain.Event
	changed chan struct{}
}

func newEventLog() *EventLog {
	return &EventLog{changed: make(chan struct{})}
}

// append stores e and wakes everyone waiting on Changed.
func (l *EventLog) append(e *domain.Event) {
	l.mu.Lock()
	l.events = append(l.events, e.Clone())
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()
}

// Len returns the number of events, which is also the last sequence number.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// LastSeq returns the sequence of the newest event, or 0 when empty.
func (l *EventLog) LastSeq() uint64 {
	return uint64(l.Len())
}

// All returns copies of every event.
func (l *EventLog) All() []*domain.Event {
	return l.Since(0, 0)
}

// Since returns copies of events with Seq > afterSeq, at most limit of them.
// A limit <= 0 means no limit.
func (l *EventLog) Since(afterSeq uint64, limit int) []*domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if afterSeq >= uint64(len(l.events)) {
		return nil
	}

	// Seq n lives at index n-1.
	tail := l.events[afterSeq:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}

	result := make([]*domain.Event, len(tail))
	for i, e := range tail {
		result[i] = e.Clone()
	}
	return result
}

// Changed returns a channel that is closed at the next append.
// Grab it before reading with Since to avoid missing a wakeup.
func (l *EventLog) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}
