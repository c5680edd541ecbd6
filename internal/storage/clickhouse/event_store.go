package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk appends events. Fails entire batch on duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := storage.ValidateEvents(events); err != nil {
		return err
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (
			seq, kind, from_account, to_account, value, spender, committed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Seq, string(e.Kind),
			string(e.From[:]), string(e.To[:]),
			domain.AmountOrZero(e.Value).ToBig(),
			string(e.Spender[:]),
			e.CommittedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetSince retrieves events with seq > afterSeq, ordered by seq ASC.
func (s *EventStore) GetSince(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	query := `
		SELECT seq, kind, from_account, to_account, value, spender, committed_at
		FROM ledger_events
		WHERE seq > ?
		ORDER BY seq ASC
	`
	args := []any{afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastSeq returns the highest stored seq, or 0 when empty.
func (s *EventStore) LastSeq(ctx context.Context) (uint64, error) {
	var last uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM ledger_events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("query last event seq: %w", err)
	}
	return last, nil
}

// exists checks if an event with the given seq exists.
func (s *EventStore) exists(ctx context.Context, seq uint64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM ledger_events WHERE seq = ?`, seq).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanEvents scans multiple rows.
func scanEvents(rows chRows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			e                 domain.Event
			kind              string
			from, to, spender string
			value             big.Int
		)

		err := rows.Scan(&e.Seq, &kind, &from, &to, &value, &spender, &e.CommittedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger events row: %w", err)
		}

		e.Kind = domain.EventKind(kind)
		copy(e.From[:], from)
		copy(e.To[:], to)
		copy(e.Spender[:], spender)

		v, overflow := uint256.FromBig(&value)
		if overflow {
			return nil, fmt.Errorf("event %d value exceeds 256 bits", e.Seq)
		}
		e.Value = v

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events rows: %w", err)
	}

	return events, nil
}
