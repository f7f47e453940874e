package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firegate/internal/domain"
	"firegate/internal/request/models"
	"firegate/pkg/platform/sentinel"
)

// PostgresStore persists requests in PostgreSQL. The decision log is a
// JSONB array appended in place so the append stays atomic with the
// terminal-status guard.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the requests table and ID sequence if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE SEQUENCE IF NOT EXISTS access_request_seq;
		CREATE TABLE IF NOT EXISTS access_requests (
			id                     TEXT PRIMARY KEY,
			requester              TEXT NOT NULL,
			subject                TEXT NOT NULL,
			subject_manager        TEXT NOT NULL DEFAULT '',
			target_system          TEXT NOT NULL,
			tier                   TEXT NOT NULL,
			firefighter_id         TEXT NOT NULL DEFAULT '',
			window_start           TIMESTAMPTZ NOT NULL,
			window_end             TIMESTAMPTZ NOT NULL,
			ticket_ref             TEXT NOT NULL,
			transactions_requested TEXT NOT NULL,
			activity_description   TEXT NOT NULL,
			status                 TEXT NOT NULL,
			decisions              JSONB NOT NULL DEFAULT '[]',
			awaiting_capacity      BOOLEAN NOT NULL DEFAULT FALSE,
			provisioning_failed    BOOLEAN NOT NULL DEFAULT FALSE,
			deactivation_failed    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at             TIMESTAMPTZ NOT NULL,
			last_transition_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS access_requests_status_idx ON access_requests (status);
		CREATE INDEX IF NOT EXISTS access_requests_requester_idx ON access_requests (requester);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure request schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) NextID(ctx context.Context) (string, error) {
	var seq uint64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('access_request_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next request id: %w", err)
	}
	return domain.FormatRequestID(seq), nil
}

const requestColumns = `
	id, requester, subject, subject_manager, target_system, tier,
	firefighter_id, window_start, window_end, ticket_ref,
	transactions_requested, activity_description, status, decisions,
	awaiting_capacity, provisioning_failed, deactivation_failed,
	created_at, last_transition_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.AccessRequest) error {
	decisions, err := json.Marshal(req.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO NOTHING`,
		req.ID, req.Requester, req.Subject, req.SubjectManager, req.TargetSystem,
		string(req.Tier), req.FirefighterID, req.Window.Start, req.Window.End,
		req.Justification.TicketRef, req.Justification.TransactionsRequested,
		req.Justification.ActivityDescription, string(req.Status), decisions,
		req.AwaitingCapacity, req.ProvisioningFailed, req.DeactivationFailed,
		req.CreatedAt, req.LastTransitionAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	// ON CONFLICT swallows duplicates; verify the write landed.
	var exists string
	if err := s.db.QueryRowContext(ctx, `SELECT status FROM access_requests WHERE id = $1`, req.ID).Scan(&exists); err != nil {
		return fmt.Errorf("verify insert: %w", err)
	}
	if exists != string(req.Status) {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM access_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func (s *PostgresStore) Update(ctx context.Context, req *models.AccessRequest, expected domain.Status) error {
	decisions, err := json.Marshal(req.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE access_requests SET
			subject_manager = $2, firefighter_id = $3, status = $4,
			decisions = $5, awaiting_capacity = $6, provisioning_failed = $7,
			deactivation_failed = $8, last_transition_at = $9
		WHERE id = $1 AND status = $10`,
		req.ID, req.SubjectManager, req.FirefighterID, string(req.Status),
		decisions, req.AwaitingCapacity, req.ProvisioningFailed,
		req.DeactivationFailed, req.LastTransitionAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, req.ID); getErr != nil {
			return getErr
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) AppendDecision(ctx context.Context, id string, d models.Decision) (*models.AccessRequest, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal decision: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE access_requests
		SET decisions = decisions || $2::jsonb
		WHERE id = $1 AND status NOT IN ('completed','rejected','cancelled')
		RETURNING `+requestColumns,
		id, payload,
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, sentinel.ErrInvalidState
	}
	return req, err
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Requester != "" {
		args = append(args, f.Requester)
		query += fmt.Sprintf(" AND requester = $%d", len(args))
	}
	if f.Approver != "" {
		args = append(args, f.Approver)
		query += fmt.Sprintf(` AND status = 'pending_approval' AND subject_manager = $%d
			AND NOT decisions @> '[{"step_kind":"manager_approval"}]'`, len(args))
	}
	query += " ORDER BY created_at, id"
	return s.queryRequests(ctx, query, args...)
}

func (s *PostgresStore) ListActivationDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM access_requests
		WHERE status = 'approved' AND firefighter_id <> ''
		  AND NOT provisioning_failed AND window_start <= $1
		ORDER BY created_at, id`, now)
}

func (s *PostgresStore) ListExpiryDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM access_requests
		WHERE status = 'active' AND window_end <= $1
		ORDER BY created_at, id`, now)
}

func (s *PostgresStore) ListAwaitingCapacity(ctx context.Context, targetSystem string) ([]*models.AccessRequest, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM access_requests
		WHERE status = 'pending_approval' AND awaiting_capacity AND target_system = $1
		ORDER BY created_at, id`, targetSystem)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []*models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	var (
		req       models.AccessRequest
		tier      string
		status    string
		decisions []byte
	)
	err := row.Scan(
		&req.ID, &req.Requester, &req.Subject, &req.SubjectManager,
		&req.TargetSystem, &tier, &req.FirefighterID,
		&req.Window.Start, &req.Window.End,
		&req.Justification.TicketRef, &req.Justification.TransactionsRequested,
		&req.Justification.ActivityDescription, &status, &decisions,
		&req.AwaitingCapacity, &req.ProvisioningFailed, &req.DeactivationFailed,
		&req.CreatedAt, &req.LastTransitionAt,
	)
	if err != nil {
		return nil, err
	}
	req.Tier = domain.Tier(tier)
	req.Status = domain.Status(status)
	if err := json.Unmarshal(decisions, &req.Decisions); err != nil {
		return nil, fmt.Errorf("unmarshal decisions: %w", err)
	}
	return &req, nil
}
