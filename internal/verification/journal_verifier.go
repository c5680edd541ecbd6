package verification

import (
	"context"
	"errors"
	"fmt"

	"token-ledger/internal/domain"
	"token-ledger/internal/idhash"
	"token-ledger/internal/journal"
	"token-ledger/internal/storage"
)

var (
	// ErrEventNotFound is returned when seq doesn't exist in the primary journal.
	ErrEventNotFound = errors.New("event not found")

	// ErrNotConserved is returned when a replayed ledger's balances do not sum to its supply.
	ErrNotConserved = errors.New("replayed balances do not sum to total supply")
)

// MirrorVerifier implements Verifier by comparing a mirror store against the primary journal.
type MirrorVerifier struct {
	primary  storage.EventStore
	mirror   storage.EventStore
	pageSize int
}

// MirrorVerifierOptions contains configuration for creating a MirrorVerifier.
type MirrorVerifierOptions struct {
	Primary  storage.EventStore
	Mirror   storage.EventStore
	PageSize int // Default: 1000
}

// Compile-time interface check.
var _ Verifier = (*MirrorVerifier)(nil)

// NewMirrorVerifier creates a new MirrorVerifier.
func NewMirrorVerifier(opts MirrorVerifierOptions) *MirrorVerifier {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &MirrorVerifier{
		primary:  opts.Primary,
		mirror:   opts.Mirror,
		pageSize: pageSize,
	}
}

// VerifyEvent compares the event at seq in both stores.
func (v *MirrorVerifier) VerifyEvent(ctx context.Context, seq uint64) (*VerificationResult, error) {
	if seq == 0 {
		return nil, ErrEventNotFound
	}

	stored, err := eventAt(ctx, v.primary, seq)
	if err != nil {
		return nil, fmt.Errorf("load primary event %d: %w", seq, err)
	}
	if stored == nil {
		return nil, ErrEventNotFound
	}

	mirrored, err := eventAt(ctx, v.mirror, seq)
	if err != nil {
		return nil, fmt.Errorf("load mirrored event %d: %w", seq, err)
	}

	return compare(stored, mirrored), nil
}

// VerifyAll compares every primary event with the mirror. Events past the
// mirror's last seq count as lagging rather than divergent.
func (v *MirrorVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	primaryLast, err := v.primary.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("primary last seq: %w", err)
	}
	mirrorLast, err := v.mirror.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror last seq: %w", err)
	}

	report := &VerificationReport{MirrorAhead: mirrorLast > primaryLast}

	var cursor uint64
	for {
		page, err := v.primary.GetSince(ctx, cursor, v.pageSize)
		if err != nil {
			return nil, fmt.Errorf("load primary events after %d: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		mirrored, err := v.mirror.GetSince(ctx, cursor, v.pageSize)
		if err != nil {
			return nil, fmt.Errorf("load mirrored events after %d: %w", cursor, err)
		}
		bySeq := make(map[uint64]*domain.Event, len(mirrored))
		for _, e := range mirrored {
			bySeq[e.Seq] = e
		}

		for _, e := range page {
			report.TotalEvents++
			report.PrimaryDigest = idhash.NextJournalDigest(report.PrimaryDigest, e)

			if e.Seq > mirrorLast {
				report.LaggingEvents++
				continue
			}

			result := compare(e, bySeq[e.Seq])
			if result.Match {
				report.MatchedEvents++
				continue
			}
			report.DivergentEvents++
			report.Results = append(report.Results, *result)
		}

		cursor = page[len(page)-1].Seq
		if len(page) < v.pageSize {
			break
		}
	}

	report.MirrorDigest, err = digestOf(ctx, v.mirror, v.pageSize)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// ReplaySummary describes the ledger rebuilt from a journal.
type ReplaySummary struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	LastSeq     uint64 `json:"lastSeq"`
	Holders     int    `json:"holders"`
	Conserved   bool   `json:"conserved"`
	Digest      string `json:"digest"`
}

// VerifyReplay rebuilds the ledger from genesis and events and checks that
// supply is conserved. Replay itself rejects gaps and mismatching records.
func VerifyReplay(ctx context.Context, genesis storage.GenesisStore, events storage.EventStore) (*ReplaySummary, error) {
	engine, err := journal.Recover(ctx, genesis, events)
	if err != nil {
		return nil, err
	}

	meta := engine.Metadata()
	summary := &ReplaySummary{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: domain.FormatAmount(meta.TotalSupply),
		LastSeq:     engine.Log().LastSeq(),
		Holders:     engine.Holders(),
		Conserved:   engine.Conserved(),
		Digest:      idhash.ComputeJournalDigest(engine.Events()),
	}
	if !summary.Conserved {
		return summary, ErrNotConserved
	}
	return summary, nil
}

func compare(stored, mirrored *domain.Event) *VerificationResult {
	if mirrored == nil {
		return &VerificationResult{
			Seq:         stored.Seq,
			Divergences: []FieldDivergence{{Field: "Seq", Expected: stored.Seq, Actual: nil}},
		}
	}
	divergences := CompareEvents(stored, mirrored)
	return &VerificationResult{
		Seq:         stored.Seq,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}
}

// eventAt returns the event with the given seq, or nil when absent.
func eventAt(ctx context.Context, store storage.EventStore, seq uint64) (*domain.Event, error) {
	page, err := store.GetSince(ctx, seq-1, 1)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 || page[0].Seq != seq {
		return nil, nil
	}
	return page[0], nil
}

func digestOf(ctx context.Context, store storage.EventStore, pageSize int) (string, error) {
	var (
		digest string
		cursor uint64
	)
	for {
		page, err := store.GetSince(ctx, cursor, pageSize)
		if err != nil {
			return "", fmt.Errorf("load events after %d: %w", cursor, err)
		}
		for _, e := range page {
			digest = idhash.NextJournalDigest(digest, e)
		}
		if len(page) < pageSize {
			return digest, nil
		}
		cursor = page[len(page)-1].Seq
	}
}
