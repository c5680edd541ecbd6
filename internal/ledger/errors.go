package ledger

import "errors"

// Ledger errors. Each is permanent for the arguments that produced it;
// a failing call leaves every table and the event log unchanged.
var (
	// ErrInsufficientBalance is returned when a debit exceeds the account balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when transferFrom exceeds the caller's remaining quota.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInvalidRecipient is returned when the destination is the null account.
	ErrInvalidRecipient = errors.New("invalid recipient: null account")

	// ErrInvalidSpender is returned when approve names the null account as spender.
	ErrInvalidSpender = errors.New("invalid spender: null account")

	// ErrOverflow is returned when an amount would exceed 256 bits.
	ErrOverflow = errors.New("amount overflow")
)

// Replay errors.
var (
	// ErrJournalGap is returned when journaled events are not contiguous from 1.
	ErrJournalGap = errors.New("journal gap")

	// ErrJournalMismatch is returned when replaying an event does not reproduce it.
	ErrJournalMismatch = errors.New("journal mismatch")
)

// Stable error kind names, used on the wire and as metric labels.
const (
	KindInsufficientBalance   = "InsufficientBalance"
	KindInsufficientAllowance = "InsufficientAllowance"
	KindInvalidRecipient      = "InvalidRecipient"
	KindInvalidSpender        = "InvalidSpender"
	KindOverflow              = "Overflow"
	KindUnknown               = "Unknown"
)

// ErrorKind maps err to its stable kind name.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrInsufficientAllowance):
		return KindInsufficientAllowance
	case errors.Is(err, ErrInvalidRecipient):
		return KindInvalidRecipient
	case errors.Is(err, ErrInvalidSpender):
		return KindInvalidSpender
	case errors.Is(err, ErrOverflow):
		return KindOverflow
	default:
		return KindUnknown
	}
}

// IsRejection reports whether err is one of the ledger precondition failures.
func IsRejection(err error) bool {
	return err != nil && ErrorKind(err) != KindUnknown
}
