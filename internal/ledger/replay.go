package ledger

import (
	"fmt"

	"token-ledger/internal/domain"
)

// Replay rebuilds an engine from its genesis record and journaled events.
//
// Each event is re-applied through the same validated path that produced it:
// Approval through approve, a Transfer carrying a Spender through
// transferFrom, any other Transfer through transfer. The result must match
// the journaled record exactly; CommittedAt is taken from the journal.
func Replay(g *domain.Genesis, events []*domain.Event, opts ...Option) (*Engine, error) {
	e, err := NewFromGenesis(g, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range events {
		if err := e.apply(ev); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
	}
	return e, nil
}

// apply requires e.mu held for writing.
func (e *Engine) apply(ev *domain.Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrJournalMismatch)
	}

	want := e.log.LastSeq() + 1
	if ev.Seq != want {
		return fmt.Errorf("%w: want seq %d, got %d", ErrJournalGap, want, ev.Seq)
	}

	value := domain.AmountOrZero(ev.Value)

	var (
		got *domain.Event
		err error
	)
	switch {
	case ev.Kind == domain.EventKindApproval:
		got, err = e.approve(ev.From, ev.To, value, ev.CommittedAt)
	case ev.Kind == domain.EventKindTransfer && ev.Delegated():
		got, err = e.transferFrom(ev.Spender, ev.From, ev.To, value, ev.CommittedAt)
	case ev.Kind == domain.EventKindTransfer:
		got, err = e.transfer(ev.From, ev.To, value, ev.CommittedAt)
	default:
		return fmt.Errorf("%w: seq %d: unknown kind %q", ErrJournalMismatch, ev.Seq, ev.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: seq %d: %v", ErrJournalMismatch, ev.Seq, err)
	}
	if !got.SameRecord(ev) {
		return fmt.Errorf("%w: seq %d: replayed record differs", ErrJournalMismatch, ev.Seq)
	}
	return nil
}
