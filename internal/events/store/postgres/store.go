// Package postgres implements the event store as a transactional outbox.
// Events land in the outbox table in the same database transaction as the
// registry mutation (when one is carried in context); the outbox worker
// publishes them to Kafka and marks them dispatched.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"portrait/internal/events"
	txcontext "portrait/pkg/platform/tx"
)

// Store writes events to the portrait_event_outbox table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL outbox store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the outbox table. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portrait_event_outbox (
			event_id    UUID PRIMARY KEY,
			event_type  TEXT NOT NULL,
			payload     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			dispatched  BOOLEAN NOT NULL DEFAULT FALSE
		)`)
	if err != nil {
		return fmt.Errorf("migrate event outbox: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one event to the outbox.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO portrait_event_outbox (event_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		event.ID, string(event.Type), payload, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append event to outbox: %w", err)
	}
	return nil
}

// Pending returns up to limit undispatched events in creation order.
func (s *Store) Pending(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM portrait_event_outbox
		WHERE NOT dispatched
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		var event events.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode pending event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// MarkDispatched flags events as published.
func (s *Store) MarkDispatched(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE portrait_event_outbox SET dispatched = TRUE
		WHERE event_id = ANY($1)`, eventIDs)
	if err != nil {
		return fmt.Errorf("mark events dispatched: %w", err)
	}
	return nil
}
