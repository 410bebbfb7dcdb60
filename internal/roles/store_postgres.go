package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadpipe/pkg/sentinel"
)

// PostgresStore persists capability sets in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE capability_sets (
//	    identity       TEXT PRIMARY KEY,
//	    viewer         BOOLEAN NOT NULL DEFAULT FALSE,
//	    record_manager BOOLEAN NOT NULL DEFAULT FALSE,
//	    lead_owner     BOOLEAN NOT NULL DEFAULT FALSE,
//	    admin          BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, identity string) (CapabilitySet, error) {
	const query = `
		SELECT viewer, record_manager, lead_owner, admin
		FROM capability_sets
		WHERE identity = $1`

	var caps CapabilitySet
	err := s.db.QueryRowContext(ctx, query, identity).
		Scan(&caps.Viewer, &caps.RecordManager, &caps.LeadOwner, &caps.Admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CapabilitySet{}, sentinel.ErrNotFound
		}
		return CapabilitySet{}, fmt.Errorf("find capability set: %w", err)
	}
	return caps, nil
}

// CreateIfAbsent relies on the primary key for atomicity: concurrent
// bootstraps for the same identity resolve to a single row and every loser
// reports created=false without error.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, identity string, caps CapabilitySet) (bool, error) {
	const query = `
		INSERT INTO capability_sets (identity, viewer, record_manager, lead_owner, admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		identity, caps.Viewer, caps.RecordManager, caps.LeadOwner, caps.Admin)
	if err != nil {
		return false, fmt.Errorf("bootstrap capability set: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bootstrap capability set: %w", err)
	}
	return rows == 1, nil
}

func (s *PostgresStore) Save(ctx context.Context, identity string, caps CapabilitySet) error {
	const query = `
		INSERT INTO capability_sets (identity, viewer, record_manager, lead_owner, admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO UPDATE SET
			viewer = EXCLUDED.viewer,
			record_manager = EXCLUDED.record_manager,
			lead_owner = EXCLUDED.lead_owner,
			admin = EXCLUDED.admin,
			updated_at = now()`

	_, err := s.db.ExecContext(ctx, query,
		identity, caps.Viewer, caps.RecordManager, caps.LeadOwner, caps.Admin)
	if err != nil {
		return fmt.Errorf("save capability set: %w", err)
	}
	return nil
}
