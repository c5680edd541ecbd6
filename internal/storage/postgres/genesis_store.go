package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// GenesisStore implements storage.GenesisStore using PostgreSQL.
type GenesisStore struct {
	pool *Pool
}

// NewGenesisStore creates a new GenesisStore.
func NewGenesisStore(pool *Pool) *GenesisStore {
	return &GenesisStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GenesisStore = (*GenesisStore)(nil)

// Insert stores the genesis record. Returns ErrDuplicateKey if one already exists.
func (s *GenesisStore) Insert(ctx context.Context, g *domain.Genesis) error {
	if g == nil || g.Deployer.IsNull() {
		return storage.ErrInvalidInput
	}

	// The table holds a single row keyed by id = 1.
	query := `
		INSERT INTO ledger_genesis (
			id, name, symbol, decimals, initial_supply, deployer, created_at
		) VALUES (1, $1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		g.Name,
		g.Symbol,
		int16(g.Decimals),
		amountToNumeric(g.InitialSupply),
		g.Deployer[:],
		g.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert genesis: %w", err)
	}
	return nil
}

// Get retrieves the genesis record. Returns ErrNotFound if none was stored.
func (s *GenesisStore) Get(ctx context.Context) (*domain.Genesis, error) {
	query := `
		SELECT name, symbol, decimals, initial_supply, deployer, created_at
		FROM ledger_genesis
		WHERE id = 1
	`

	var (
		g        domain.Genesis
		decimals int16
		supply   pgtype.Numeric
		deployer []byte
	)

	err := s.pool.QueryRow(ctx, query).Scan(
		&g.Name,
		&g.Symbol,
		&decimals,
		&supply,
		&deployer,
		&g.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get genesis: %w", err)
	}

	g.Decimals = uint8(decimals)
	if g.InitialSupply, err = numericToAmount(supply); err != nil {
		return nil, fmt.Errorf("decode genesis initial supply: %w", err)
	}
	if g.Deployer, err = bytesToAccount(deployer); err != nil {
		return nil, fmt.Errorf("decode genesis deployer: %w", err)
	}
	return &g, nil
}
