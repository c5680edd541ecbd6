package memory

import (
	"context"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// GenesisStore is an in-memory implementation of storage.GenesisStore.
type GenesisStore struct {
	mu      sync.RWMutex
	genesis *domain.Genesis
}

// NewGenesisStore creates a new in-memory genesis store.
func NewGenesisStore() *GenesisStore {
	return &GenesisStore{}
}

// Insert stores the genesis record. Returns ErrDuplicateKey if one exists.
func (s *GenesisStore) Insert(_ context.Context, g *domain.Genesis) error {
	if g == nil || g.Deployer.IsNull() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.genesis != nil {
		return storage.ErrDuplicateKey
	}

	s.genesis = g.Clone()
	return nil
}

// Get retrieves the genesis record. Returns ErrNotFound if none was stored.
func (s *GenesisStore) Get(_ context.Context) (*domain.Genesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.genesis == nil {
		return nil, storage.ErrNotFound
	}
	return s.genesis.Clone(), nil
}

var _ storage.GenesisStore = (*GenesisStore)(nil)
