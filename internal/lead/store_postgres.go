package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"leadpipe/pkg/sentinel"
)

// NotifyChannel is the postgres notification channel lead writes fire on.
const NotifyChannel = "leads_changed"

// PostgresStore persists leads in PostgreSQL. Watches use LISTEN/NOTIFY on a
// dedicated connection per subscription and re-read the full result set per
// wakeup; notifications carry no payload, they only mean "something changed".
//
// Expected schema:
//
//	CREATE TABLE leads (
//	    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    name       TEXT NOT NULL,
//	    company    TEXT NOT NULL DEFAULT '',
//	    stage      TEXT NOT NULL,
//	    notes      TEXT NOT NULL DEFAULT '',
//	    email      TEXT,
//	    phone      TEXT,
//	    consent    BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_by TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX leads_created_at_idx ON leads (created_at DESC);
//
//	CREATE FUNCTION notify_leads_changed() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('leads_changed', '');
//	    RETURN NULL;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER leads_changed AFTER INSERT OR UPDATE OR DELETE ON leads
//	    FOR EACH STATEMENT EXECUTE FUNCTION notify_leads_changed();
//
// The trigger keeps writers honest: any change, from this process or another,
// wakes every subscription.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
}

func NewPostgres(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn, logger: logger}
}

func (s *PostgresStore) Insert(ctx context.Context, l *Lead) error {
	const query = `
		INSERT INTO leads (name, company, stage, notes, email, phone, consent,
			created_by, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		l.Name, l.Company, l.Stage, l.Notes, l.Email, l.Phone, l.Consent,
		l.CreatedBy, l.CreatedAt, l.UpdatedAt, l.ExpiresAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) Merge(ctx context.Context, id string, l Lead) error {
	const query = `
		UPDATE leads SET
			name = $2, company = $3, stage = $4, notes = $5,
			email = $6, phone = $7, consent = $8,
			updated_at = $9, expires_at = $10
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id,
		l.Name, l.Company, l.Stage, l.Notes, l.Email, l.Phone, l.Consent,
		l.UpdatedAt, l.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Lead, error) {
	const query = `
		SELECT id, name, company, stage, notes, email, phone, consent,
			created_by, created_at, updated_at, expires_at
		FROM leads
		WHERE id = $1`

	var l Lead
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Name, &l.Company, &l.Stage, &l.Notes, &l.Email, &l.Phone,
		&l.Consent, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &l.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, sentinel.ErrNotFound
		}
		return Lead{}, fmt.Errorf("find lead: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) Watch(ctx context.Context, q Query) (Subscription, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open watch connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &postgresSubscription{
		store:  s,
		conn:   conn,
		query:  q,
		cancel: cancel,
		snaps:  make(chan []Lead),
		errs:   make(chan error, 1),
	}
	go sub.run(runCtx)
	return sub, nil
}

// evaluate reads the full result set for a query.
func (s *PostgresStore) evaluate(ctx context.Context, q Query) ([]Lead, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, name, company, stage, notes, email, phone, consent,
			created_by, created_at, updated_at, expires_at
		FROM leads`)
	var args []any
	if q.Stage != nil {
		args = append(args, *q.Stage)
		sb.WriteString(" WHERE stage = $1")
	}
	if q.OrderByCreatedAt {
		sb.WriteString(" ORDER BY created_at DESC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		var l Lead
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Company, &l.Stage, &l.Notes, &l.Email, &l.Phone,
			&l.Consent, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &l.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	return out, nil
}

type postgresSubscription struct {
	store  *PostgresStore
	conn   *pgx.Conn
	query  Query
	cancel context.CancelFunc

	snaps chan []Lead
	errs  chan error
	once  sync.Once
}

func (sub *postgresSubscription) Snapshots() <-chan []Lead { return sub.snaps }
func (sub *postgresSubscription) Errors() <-chan error     { return sub.errs }

// Close cancels the run goroutine; the goroutine owns the connection and the
// channels and tears both down on exit.
func (sub *postgresSubscription) Close() {
	sub.once.Do(sub.cancel)
}

func (sub *postgresSubscription) run(ctx context.Context) {
	defer close(sub.snaps)
	defer close(sub.errs)
	defer func() { _ = sub.conn.Close(context.Background()) }()

	if !sub.deliver(ctx) {
		return
	}
	for {
		if _, err := sub.conn.WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.store.logger.Warn("lead watch lost its connection", "error", err)
			sub.errs <- fmt.Errorf("wait for notification: %w", err)
			return
		}
		if !sub.deliver(ctx) {
			return
		}
	}
}

func (sub *postgresSubscription) deliver(ctx context.Context) bool {
	snapshot, err := sub.store.evaluate(ctx, sub.query)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		sub.errs <- err
		return false
	}
	select {
	case sub.snaps <- snapshot:
		return true
	case <-ctx.Done():
		return false
	}
}
