package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portrait/internal/team/models"
	id "portrait/pkg/domain"
	txcontext "portrait/pkg/platform/tx"
)

// PostgresStore persists team role records in PostgreSQL. The seat count is
// derived with COUNT(*) over assigned records, so the counter invariant
// cannot drift from the records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed team role store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the team role records table. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portrait_team_roles (
			team_id      BIGINT NOT NULL,
			member_id    BIGINT NOT NULL,
			role_type    SMALLINT NOT NULL,
			has_assigned BOOLEAN NOT NULL,
			has_accepted BOOLEAN NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (team_id, member_id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate team roles: %w", err)
	}
	return nil
}

type teamQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) teamQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Get returns the stored record, or the zero record for unknown pairs.
func (s *PostgresStore) Get(ctx context.Context, teamID, memberID id.PortraitID) (models.TeamRoleData, error) {
	var rec models.TeamRoleData
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT role_type, has_assigned, has_accepted FROM portrait_team_roles
		WHERE team_id = $1 AND member_id = $2`,
		uint64(teamID), uint64(memberID),
	).Scan(&rec.RoleType, &rec.HasAssigned, &rec.HasAccepted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TeamRoleData{}, nil
	}
	if err != nil {
		return models.TeamRoleData{}, fmt.Errorf("get team role: %w", err)
	}
	return rec, nil
}

// Save upserts a record; the all-zero record deletes the row.
func (s *PostgresStore) Save(ctx context.Context, teamID, memberID id.PortraitID, data models.TeamRoleData) error {
	if data == (models.TeamRoleData{}) {
		_, err := s.querier(ctx).ExecContext(ctx, `
			DELETE FROM portrait_team_roles
			WHERE team_id = $1 AND member_id = $2`,
			uint64(teamID), uint64(memberID))
		if err != nil {
			return fmt.Errorf("delete team role: %w", err)
		}
		return nil
	}
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO portrait_team_roles (team_id, member_id, role_type, has_assigned, has_accepted, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (team_id, member_id)
		DO UPDATE SET role_type = $3, has_assigned = $4, has_accepted = $5, updated_at = now()`,
		uint64(teamID), uint64(memberID), data.RoleType, data.HasAssigned, data.HasAccepted)
	if err != nil {
		return fmt.Errorf("save team role: %w", err)
	}
	return nil
}

// SeatCount returns the number of assigned seats on the team.
func (s *PostgresStore) SeatCount(ctx context.Context, teamID id.PortraitID) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM portrait_team_roles
		WHERE team_id = $1 AND has_assigned`,
		uint64(teamID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count team seats: %w", err)
	}
	return count, nil
}
