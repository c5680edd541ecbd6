package domain

import "github.com/holiman/uint256"

// EventKind identifies the operation an event records.
type EventKind string

// Event kinds
const (
	EventKindTransfer EventKind = "Transfer"
	EventKindApproval EventKind = "Approval"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == EventKindTransfer || k == EventKindApproval
}

// Event is an immutable record of a committed ledger operation.
// Corresponds to ledger_events table in PostgreSQL.
//
// For Transfer events From/To are the sender and recipient. For Approval
// events From is the owner and To the spender.
type Event struct {
	Seq         uint64       // 1-based commit sequence, contiguous
	Kind        EventKind    // Transfer | Approval
	From        Account      // sender or owner
	To          Account      // recipient or spender
	Value       *uint256.Int // smallest units
	Spender     Account      // allowance consumed by transferFrom; NullAccount otherwise
	CommittedAt int64        // commit timestamp (ms)
}

// Owner returns the approving account of an Approval event.
func (e *Event) Owner() Account {
	return e.From
}

// ApprovedSpender returns the approved account of an Approval event.
func (e *Event) ApprovedSpender() Account {
	return e.To
}

// Delegated reports whether a Transfer consumed an allowance.
func (e *Event) Delegated() bool {
	return e.Kind == EventKindTransfer && !e.Spender.IsNull()
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	c := *e
	c.Value = CloneAmount(e.Value)
	return &c
}

// SameRecord reports whether two events describe the same committed operation.
func (e *Event) SameRecord(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Seq == other.Seq &&
		e.Kind == other.Kind &&
		e.From == other.From &&
		e.To == other.To &&
		e.Spender == other.Spender &&
		AmountOrZero(e.Value).Eq(AmountOrZero(other.Value))
}
