// Package verification checks journal stores against each other and against
// a replay of the ledger. It verifies that a mirror holds exactly what the
// primary journal holds, field by field.
package verification

import (
	"context"

	"token-ledger/internal/domain"
)

// FieldDivergence represents a mismatch between primary and mirrored values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // primary value
	Actual   any    // mirrored value
}

// VerificationResult contains the result of verifying a single event.
type VerificationResult struct {
	Seq         uint64            // verified event seq
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalEvents     int                  // events in the primary journal
	MatchedEvents   int                  // events mirrored exactly
	DivergentEvents int                  // events missing or different in the mirror
	LaggingEvents   int                  // events past the mirror's last seq, not yet exported
	MirrorAhead     bool                 // mirror holds events the primary lacks
	PrimaryDigest   string               // journal digest of the primary
	MirrorDigest    string               // journal digest of the mirror
	Results         []VerificationResult // divergent events only
}

// Consistent reports whether the mirror is a prefix of the primary.
func (r *VerificationReport) Consistent() bool {
	return r.DivergentEvents == 0 && !r.MirrorAhead
}

// Verifier interface for journal verification.
type Verifier interface {
	// VerifyEvent compares a single event by seq.
	VerifyEvent(ctx context.Context, seq uint64) (*VerificationResult, error)

	// VerifyAll compares every event in the primary journal.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareEvents compares two events and returns divergences.
// CommittedAt is compared exactly; replay preserves it.
func CompareEvents(primary, mirrored *domain.Event) []FieldDivergence {
	var divergences []FieldDivergence

	if primary.Seq != mirrored.Seq {
		divergences = append(divergences, FieldDivergence{
			Field:    "Seq",
			Expected: primary.Seq,
			Actual:   mirrored.Seq,
		})
	}

	if primary.Kind != mirrored.Kind {
		divergences = append(divergences, FieldDivergence{
			Field:    "Kind",
			Expected: primary.Kind,
			Actual:   mirrored.Kind,
		})
	}

	if primary.From != mirrored.From {
		divergences = append(divergences, FieldDivergence{
			Field:    "From",
			Expected: primary.From.String(),
			Actual:   mirrored.From.String(),
		})
	}

	if primary.To != mirrored.To {
		divergences = append(divergences, FieldDivergence{
			Field:    "To",
			Expected: primary.To.String(),
			Actual:   mirrored.To.String(),
		})
	}

	if !domain.AmountOrZero(primary.Value).Eq(domain.AmountOrZero(mirrored.Value)) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Value",
			Expected: domain.FormatAmount(primary.Value),
			Actual:   domain.FormatAmount(mirrored.Value),
		})
	}

	if primary.Spender != mirrored.Spender {
		divergences = append(divergences, FieldDivergence{
			Field:    "Spender",
			Expected: primary.Spender.String(),
			Actual:   mirrored.Spender.String(),
		})
	}

	if primary.CommittedAt != mirrored.CommittedAt {
		divergences = append(divergences, FieldDivergence{
			Field:    "CommittedAt",
			Expected: primary.CommittedAt,
			Actual:   mirrored.CommittedAt,
		})
	}

	return divergences
}
