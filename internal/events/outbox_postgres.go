package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresOutbox implements the transactional outbox over PostgreSQL.
type PostgresOutbox struct {
	db *sql.DB
}

// NewPostgresOutbox constructs a PostgreSQL-backed outbox.
func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// EnsureSchema creates the outbox table if missing.
func (o *PostgresOutbox) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS transition_outbox (
			id           UUID PRIMARY KEY,
			request_id   TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			payload      JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS transition_outbox_pending_idx
			ON transition_outbox (created_at) WHERE published_at IS NULL;
	`
	if _, err := o.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure outbox schema: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) Append(ctx context.Context, env Envelope) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO transition_outbox (id, request_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		env.ID, env.RequestID, env.EventType, env.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) Unpublished(ctx context.Context, limit int) ([]Envelope, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, request_id, event_type, payload
		FROM transition_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()

	var out []Envelope
	for rows.Next() {
		var env Envelope
		if err := rows.Scan(&env.ID, &env.RequestID, &env.EventType, &env.Payload); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func (o *PostgresOutbox) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := o.db.ExecContext(ctx, `
		UPDATE transition_outbox SET published_at = now()
		WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
