package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk appends events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := storage.ValidateEvents(events); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ledger_events (
			seq, kind, from_account, to_account, value, spender, committed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			int64(e.Seq),
			string(e.Kind),
			e.From[:],
			e.To[:],
			amountToNumeric(e.Value),
			e.Spender[:],
			e.CommittedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSince retrieves events with seq > afterSeq, ordered by seq ASC.
func (s *EventStore) GetSince(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	query := `
		SELECT seq, kind, from_account, to_account, value, spender, committed_at
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq ASC
	`
	args := []any{int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastSeq returns the highest stored seq, or 0 when empty.
func (s *EventStore) LastSeq(ctx context.Context) (uint64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("get last event seq: %w", err)
	}
	return uint64(last), nil
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			seq               int64
			kind              string
			from, to, spender []byte
			value             pgtype.Numeric
			committedAt       int64
		)

		if err := rows.Scan(&seq, &kind, &from, &to, &value, &spender, &committedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e := &domain.Event{
			Seq:         uint64(seq),
			Kind:        domain.EventKind(kind),
			CommittedAt: committedAt,
		}

		var err error
		if e.From, err = bytesToAccount(from); err != nil {
			return nil, fmt.Errorf("decode event %d from: %w", seq, err)
		}
		if e.To, err = bytesToAccount(to); err != nil {
			return nil, fmt.Errorf("decode event %d to: %w", seq, err)
		}
		if e.Spender, err = bytesToAccount(spender); err != nil {
			return nil, fmt.Errorf("decode event %d spender: %w", seq, err)
		}
		if e.Value, err = numericToAmount(value); err != nil {
			return nil, fmt.Errorf("decode event %d value: %w", seq, err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
