package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portrait/internal/identity/models"
	id "portrait/pkg/domain"
	"portrait/pkg/platform/sentinel"
	txcontext "portrait/pkg/platform/tx"
)

// PostgresStore persists identity records in PostgreSQL. Sequential ID
// allocation rides on a BIGSERIAL, so IDs start at 1 and are never reused
// even across restarts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the identity tables. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portrait_identities (
			portrait_id   BIGSERIAL PRIMARY KEY,
			owner_address TEXT NOT NULL,
			tokenized     BOOLEAN NOT NULL DEFAULT FALSE,
			acquired_seq  BIGSERIAL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS portrait_identities_owner_idx
			ON portrait_identities (owner_address, acquired_seq);
		CREATE TABLE IF NOT EXISTS portrait_primary_ids (
			owner_address TEXT PRIMARY KEY,
			portrait_id   BIGINT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate identities: %w", err)
	}
	return nil
}

type identityQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) identityQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Allocate issues the next sequential Portrait ID bound to owner.
func (s *PostgresStore) Allocate(ctx context.Context, owner id.Address) (id.PortraitID, error) {
	var portraitID id.PortraitID
	err := s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO portrait_identities (owner_address)
		VALUES ($1)
		RETURNING portrait_id`,
		owner.String(),
	).Scan(&portraitID)
	if err != nil {
		return 0, fmt.Errorf("allocate portrait id: %w", err)
	}
	return portraitID, nil
}

// Discard removes an identity minted earlier in the same operation. The
// BIGSERIAL is not rewound, so the discarded ID is never reissued.
func (s *PostgresStore) Discard(ctx context.Context, portraitID id.PortraitID) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		DELETE FROM portrait_identities
		WHERE portrait_id = $1`,
		uint64(portraitID))
	if err != nil {
		return fmt.Errorf("discard identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("discard identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Get returns the identity record for portraitID.
func (s *PostgresStore) Get(ctx context.Context, portraitID id.PortraitID) (models.Identity, error) {
	var (
		rec      models.Identity
		rawOwner string
	)
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT portrait_id, owner_address, tokenized FROM portrait_identities
		WHERE portrait_id = $1`,
		uint64(portraitID),
	).Scan(&rec.ID, &rawOwner, &rec.Tokenized)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	owner, err := id.ParseAddress(rawOwner)
	if err != nil {
		return models.Identity{}, fmt.Errorf("stored owner address: %w", err)
	}
	rec.Owner = owner
	return rec, nil
}

// SetOwner rebinds portraitID to owner. A fresh acquisition sequence value
// keeps the recipient's enumeration order consistent with acquisition time.
func (s *PostgresStore) SetOwner(ctx context.Context, portraitID id.PortraitID, owner id.Address) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE portrait_identities
		SET owner_address = $2, acquired_seq = nextval('portrait_identities_acquired_seq_seq'), updated_at = now()
		WHERE portrait_id = $1`,
		uint64(portraitID), owner.String())
	if err != nil {
		return fmt.Errorf("set identity owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set identity owner: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetTokenized flips the tokenized flag for portraitID.
func (s *PostgresStore) SetTokenized(ctx context.Context, portraitID id.PortraitID, tokenized bool) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE portrait_identities
		SET tokenized = $2, updated_at = now()
		WHERE portrait_id = $1`,
		uint64(portraitID), tokenized)
	if err != nil {
		return fmt.Errorf("set identity tokenized: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set identity tokenized: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// IDsOf lists the Portrait IDs owned by owner, in acquisition order.
func (s *PostgresStore) IDsOf(ctx context.Context, owner id.Address) ([]id.PortraitID, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT portrait_id FROM portrait_identities
		WHERE owner_address = $1
		ORDER BY acquired_seq`,
		owner.String())
	if err != nil {
		return nil, fmt.Errorf("list owned identities: %w", err)
	}
	defer rows.Close()

	var out []id.PortraitID
	for rows.Next() {
		var portraitID id.PortraitID
		if err := rows.Scan(&portraitID); err != nil {
			return nil, fmt.Errorf("scan owned identity: %w", err)
		}
		out = append(out, portraitID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list owned identities: %w", err)
	}
	return out, nil
}

// Primary returns owner's primary Portrait ID, or 0 when none is set.
func (s *PostgresStore) Primary(ctx context.Context, owner id.Address) (id.PortraitID, error) {
	var portraitID id.PortraitID
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT portrait_id FROM portrait_primary_ids
		WHERE owner_address = $1`,
		owner.String(),
	).Scan(&portraitID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get primary portrait: %w", err)
	}
	return portraitID, nil
}

// SetPrimary records owner's primary Portrait ID; 0 clears it.
func (s *PostgresStore) SetPrimary(ctx context.Context, owner id.Address, portraitID id.PortraitID) error {
	if portraitID == 0 {
		_, err := s.querier(ctx).ExecContext(ctx, `
			DELETE FROM portrait_primary_ids WHERE owner_address = $1`,
			owner.String())
		if err != nil {
			return fmt.Errorf("clear primary portrait: %w", err)
		}
		return nil
	}
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO portrait_primary_ids (owner_address, portrait_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_address) DO UPDATE SET portrait_id = $2`,
		owner.String(), uint64(portraitID))
	if err != nil {
		return fmt.Errorf("set primary portrait: %w", err)
	}
	return nil
}
