package idhash

import (
	"crypto/sha256"
	"encoding/hex"

	"token-ledger/internal/domain"
)

// NextJournalDigest extends prev with one event.
// Formula: SHA256(prev|event_id). The digest of an empty journal is "".
func NextJournalDigest(prev string, e *domain.Event) string {
	hash := sha256.Sum256([]byte(prev + "|" + ComputeEventID(e)))
	return hex.EncodeToString(hash[:])
}

// ComputeJournalDigest folds NextJournalDigest over events in order.
// Two stores holding the same journal produce the same digest.
func ComputeJournalDigest(events []*domain.Event) string {
	digest := ""
	for _, e := range events {
		digest = NextJournalDigest(digest, e)
	}
	return digest
}
