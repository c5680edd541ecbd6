package feed

import (
	"token-ledger/internal/domain"
)

// Message is the JSON form of a committed event. Transfers carry from/to,
// approvals carry owner/spender. A transfer with a spender was made through
// transferFrom by that spender.
type Message struct {
	Seq         uint64 `json:"seq"`
	Kind        string `json:"kind"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Spender     string `json:"spender,omitempty"`
	Value       string `json:"value"`
	CommittedAt int64  `json:"committedAt"`
}

// NewMessage converts an event to its wire form.
func NewMessage(e *domain.Event) Message {
	m := Message{
		Seq:         e.Seq,
		Kind:        string(e.Kind),
		Value:       domain.FormatAmount(e.Value),
		CommittedAt: e.CommittedAt,
	}
	switch e.Kind {
	case domain.EventKindApproval:
		m.Owner = e.Owner().String()
		m.Spender = e.ApprovedSpender().String()
	default:
		m.From = e.From.String()
		m.To = e.To.String()
		if e.Delegated() {
			m.Spender = e.Spender.String()
		}
	}
	return m
}

// NewMessages converts events in order.
func NewMessages(events []*domain.Event) []Message {
	out := make([]Message, 0, len(events))
	for _, e := range events {
		out = append(out, NewMessage(e))
	}
	return out
}
