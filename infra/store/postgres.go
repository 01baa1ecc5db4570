package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tyreaid/roadaid/core/model"
	corestore "github.com/tyreaid/roadaid/core/store"
)

// schema creates the requests table. Statuses and priorities are stored as
// text so the rows stay readable in psql.
const schema = `
CREATE TABLE IF NOT EXISTS service_requests (
	id           TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	priority     TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	claimant_id  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	accepted_at  TIMESTAMPTZ,
	closed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_service_requests_status ON service_requests (status, created_at);
CREATE INDEX IF NOT EXISTS idx_service_requests_claimant ON service_requests (claimant_id) WHERE claimant_id <> '';
`

const columns = `id, requester_id, lat, lon, priority, title, description, status, claimant_id, created_at, accepted_at, closed_at`

// PostgresStore implements the request store on PostgreSQL. The conditional
// UPDATE in Transition carries the whole concurrency story: the WHERE clause
// only matches the expected status, so losers of a race update zero rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: empty connection string")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromPool wraps an existing pool, used by tests.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// Create inserts the request, failing on a duplicate id.
func (s *PostgresStore) Create(ctx context.Context, req model.ServiceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO service_requests (` + columns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	_, err := s.pool.Exec(ctx, q,
		req.ID, req.RequesterID, req.Location.Lat, req.Location.Lon,
		req.Priority.String(), req.Title, req.Description, req.Status.String(),
		req.ClaimantID, req.CreatedAt, nullableTime(req.AcceptedAt), nullableTime(req.ClosedAt))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("store: duplicate request id %s", req.ID)
	}
	return err
}

// Get returns the request or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (model.ServiceRequest, error) {
	const q = `SELECT ` + columns + ` FROM service_requests WHERE id = $1`
	req, err := scanRequest(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ServiceRequest{}, corestore.ErrNotFound
	}
	return req, err
}

// ListByStatus returns requests in the status, oldest first.
func (s *PostgresStore) ListByStatus(ctx context.Context, st model.Status) ([]model.ServiceRequest, error) {
	const q = `SELECT ` + columns + ` FROM service_requests WHERE status = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, q, st.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListByClaimant returns the provider's claimed requests, newest first.
func (s *PostgresStore) ListByClaimant(ctx context.Context, providerID string) ([]model.ServiceRequest, error) {
	const q = `SELECT ` + columns + ` FROM service_requests WHERE claimant_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// Transition commits the status move with a conditional update. Zero rows
// updated means the request was not in `from`; the current row is re-read to
// classify the conflict for the caller.
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to model.Status, claimantID string, at time.Time) (model.ServiceRequest, error) {
	const q = `
UPDATE service_requests
SET status = $1,
    claimant_id = CASE WHEN $2 <> '' THEN $2 ELSE claimant_id END,
    accepted_at = CASE WHEN $3 THEN $4 ELSE accepted_at END,
    closed_at   = CASE WHEN $5 THEN $4 ELSE closed_at END
WHERE id = $6 AND status = $7
RETURNING ` + columns
	req, err := scanRequest(s.pool.QueryRow(ctx, q,
		to.String(), claimantID,
		to == model.StatusAccepted, at,
		to.Terminal(),
		id, from.String()))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.ServiceRequest{}, err
	}
	current, gerr := s.Get(ctx, id)
	if gerr != nil {
		return model.ServiceRequest{}, gerr
	}
	return model.ServiceRequest{}, &corestore.ConflictError{Current: current.Status, ClaimantID: current.ClaimantID}
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanRequest(row pgx.Row) (model.ServiceRequest, error) {
	var (
		req                  model.ServiceRequest
		priority, status     string
		acceptedAt, closedAt *time.Time
	)
	err := row.Scan(&req.ID, &req.RequesterID, &req.Location.Lat, &req.Location.Lon,
		&priority, &req.Title, &req.Description, &status, &req.ClaimantID,
		&req.CreatedAt, &acceptedAt, &closedAt)
	if err != nil {
		return model.ServiceRequest{}, err
	}
	p, ok := model.PriorityFromString(priority)
	if !ok {
		return model.ServiceRequest{}, fmt.Errorf("store: corrupt priority %q on %s", priority, req.ID)
	}
	req.Priority = p
	st, ok := model.StatusFromString(status)
	if !ok {
		return model.ServiceRequest{}, fmt.Errorf("store: corrupt status %q on %s", status, req.ID)
	}
	req.Status = st
	if acceptedAt != nil {
		req.AcceptedAt = *acceptedAt
	}
	if closedAt != nil {
		req.ClosedAt = *closedAt
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]model.ServiceRequest, error) {
	var out []model.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
