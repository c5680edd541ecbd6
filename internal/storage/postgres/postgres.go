package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"token-ledger/internal/domain"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// amountToNumeric encodes an amount for a NUMERIC(78,0) column.
func amountToNumeric(v *uint256.Int) pgtype.Numeric {
	return pgtype.Numeric{Int: domain.AmountOrZero(v).ToBig(), Exp: 0, Valid: true}
}

// numericToAmount decodes a NUMERIC(78,0) column. PostgreSQL may return
// trailing zeros folded into a positive exponent.
func numericToAmount(n pgtype.Numeric) (*uint256.Int, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("numeric is not a finite value")
	}

	b := new(big.Int)
	if n.Int != nil {
		b.Set(n.Int)
	}

	switch {
	case n.Exp > 0:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil)
		b.Mul(b, scale)
	case n.Exp < 0:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		var rem big.Int
		b.QuoRem(b, scale, &rem)
		if rem.Sign() != 0 {
			return nil, fmt.Errorf("numeric has a fractional part")
		}
	}

	if b.Sign() < 0 {
		return nil, fmt.Errorf("numeric is negative")
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("numeric exceeds 256 bits")
	}
	return v, nil
}

// bytesToAccount decodes a BYTEA account column.
func bytesToAccount(raw []byte) (domain.Account, error) {
	var a domain.Account
	if len(raw) != domain.AccountLength {
		return a, fmt.Errorf("account column has %d bytes", len(raw))
	}
	copy(a[:], raw)
	return a, nil
}
