package journal

import (
	"context"
	"errors"
	"fmt"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
	"token-ledger/internal/storage"
)

// recoverPageSize bounds each journal read during recovery.
const recoverPageSize = 1000

// ErrGenesisMismatch is returned when the stored genesis differs from the configured token.
var ErrGenesisMismatch = errors.New("stored genesis does not match configuration")

// Recover rebuilds the engine from the stored genesis and every journaled
// event. Returns storage.ErrNotFound when no genesis has been stored.
func Recover(ctx context.Context, genesis storage.GenesisStore, events storage.EventStore, opts ...ledger.Option) (*ledger.Engine, error) {
	g, err := genesis.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}

	var (
		journal []*domain.Event
		cursor  uint64
	)
	for {
		page, err := events.GetSince(ctx, cursor, recoverPageSize)
		if err != nil {
			return nil, fmt.Errorf("load events after %d: %w", cursor, err)
		}
		journal = append(journal, page...)
		if len(page) < recoverPageSize {
			break
		}
		cursor = page[len(page)-1].Seq
	}

	engine, err := ledger.Replay(g, journal, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	return engine, nil
}

// Bootstrap recovers the engine when a genesis is stored, or stores want and
// constructs a fresh engine when none is. created reports the latter.
func Bootstrap(ctx context.Context, genesis storage.GenesisStore, events storage.EventStore, want *domain.Genesis, opts ...ledger.Option) (engine *ledger.Engine, created bool, err error) {
	stored, err := genesis.Get(ctx)
	switch {
	case err == nil:
		if !sameToken(stored, want) {
			return nil, false, fmt.Errorf("%w: stored %s (%s) deployed by %s", ErrGenesisMismatch, stored.Name, stored.Symbol, stored.Deployer)
		}
		engine, err = Recover(ctx, genesis, events, opts...)
		return engine, false, err
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, fmt.Errorf("load genesis: %w", err)
	}

	// Validate before persisting so a bad configuration leaves no record.
	engine, err = ledger.NewFromGenesis(want, opts...)
	if err != nil {
		return nil, false, err
	}

	if err := genesis.Insert(ctx, want); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Another process stored one first.
			engine, err = Recover(ctx, genesis, events, opts...)
			return engine, false, err
		}
		return nil, false, fmt.Errorf("store genesis: %w", err)
	}
	return engine, true, nil
}

// sameToken compares the fields that define a token, ignoring CreatedAt.
func sameToken(a, b *domain.Genesis) bool {
	if b == nil {
		return true
	}
	return a.Name == b.Name &&
		a.Symbol == b.Symbol &&
		a.Decimals == b.Decimals &&
		a.Deployer == b.Deployer &&
		domain.AmountOrZero(a.InitialSupply).Eq(domain.AmountOrZero(b.InitialSupply))
}
