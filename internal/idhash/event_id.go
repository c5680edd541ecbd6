// Package idhash computes deterministic identifiers for journaled events.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"token-ledger/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(seq|kind|from|to|value|spender|committed_at)
// Accounts are 0x-prefixed lowercase hex and value is decimal.
// Returns hex-encoded hash (64 characters).
func ComputeEventID(e *domain.Event) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%d",
		e.Seq,
		string(e.Kind),
		e.From.String(),
		e.To.String(),
		domain.AmountOrZero(e.Value).Dec(),
		e.Spender.String(),
		e.CommittedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
