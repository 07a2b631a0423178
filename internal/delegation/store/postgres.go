package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portrait/internal/delegation/models"
	id "portrait/pkg/domain"
	txcontext "portrait/pkg/platform/tx"
)

// PostgresStore persists delegate records in PostgreSQL. The assigned count
// is derived with COUNT(*) rather than a maintained column, so the counter
// invariant cannot drift from the records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed delegate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the delegate records table. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portrait_delegate_records (
			owner_address    TEXT NOT NULL,
			delegate_address TEXT NOT NULL,
			has_assigned     BOOLEAN NOT NULL,
			has_accepted     BOOLEAN NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (owner_address, delegate_address)
		)`)
	if err != nil {
		return fmt.Errorf("migrate delegate records: %w", err)
	}
	return nil
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Get returns the stored record, or the zero record for unknown pairs.
func (s *PostgresStore) Get(ctx context.Context, owner, delegate id.Address) (models.DelegateData, error) {
	var rec models.DelegateData
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT has_assigned, has_accepted FROM portrait_delegate_records
		WHERE owner_address = $1 AND delegate_address = $2`,
		owner.String(), delegate.String(),
	).Scan(&rec.HasAssigned, &rec.HasAccepted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DelegateData{}, nil
	}
	if err != nil {
		return models.DelegateData{}, fmt.Errorf("get delegate record: %w", err)
	}
	return rec, nil
}

// Save upserts a record; the all-false record deletes the row.
func (s *PostgresStore) Save(ctx context.Context, owner, delegate id.Address, data models.DelegateData) error {
	if data == (models.DelegateData{}) {
		_, err := s.querier(ctx).ExecContext(ctx, `
			DELETE FROM portrait_delegate_records
			WHERE owner_address = $1 AND delegate_address = $2`,
			owner.String(), delegate.String())
		if err != nil {
			return fmt.Errorf("delete delegate record: %w", err)
		}
		return nil
	}
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO portrait_delegate_records (owner_address, delegate_address, has_assigned, has_accepted, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (owner_address, delegate_address)
		DO UPDATE SET has_assigned = $3, has_accepted = $4, updated_at = now()`,
		owner.String(), delegate.String(), data.HasAssigned, data.HasAccepted)
	if err != nil {
		return fmt.Errorf("save delegate record: %w", err)
	}
	return nil
}

// AssignedCount returns the number of delegates the owner has assigned.
func (s *PostgresStore) AssignedCount(ctx context.Context, owner id.Address) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM portrait_delegate_records
		WHERE owner_address = $1 AND has_assigned`,
		owner.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assigned delegates: %w", err)
	}
	return count, nil
}
