package sessionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"firegate/internal/connector"
	"firegate/internal/domain"
)

// PostgresStore persists category logs in PostgreSQL with the record
// payload as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session log store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the session log table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS session_logs (
			request_id  TEXT NOT NULL,
			category    TEXT NOT NULL,
			records     JSONB NOT NULL DEFAULT '[]',
			pulled_at   TIMESTAMPTZ NOT NULL,
			fetch_error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (request_id, category)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure session log schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, log *CategoryLog) error {
	records, err := json.Marshal(log.Records)
	if err != nil {
		return fmt.Errorf("marshal session log records: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_logs (request_id, category, records, pulled_at, fetch_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id, category)
		DO UPDATE SET records = $3, pulled_at = $4, fetch_error = $5`,
		log.RequestID, string(log.Category), records, log.PulledAt, log.FetchError,
	)
	if err != nil {
		return fmt.Errorf("upsert session log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID string) (map[domain.LogCategory]*CategoryLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, records, pulled_at, fetch_error
		FROM session_logs WHERE request_id = $1`, requestID)
	if err != nil {
		return nil, fmt.Errorf("load session logs: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.LogCategory]*CategoryLog)
	for rows.Next() {
		var (
			log      CategoryLog
			category string
			records  []byte
		)
		if err := rows.Scan(&category, &records, &log.PulledAt, &log.FetchError); err != nil {
			return nil, err
		}
		log.RequestID = requestID
		log.Category = domain.LogCategory(category)
		if err := json.Unmarshal(records, &log.Records); err != nil {
			return nil, fmt.Errorf("decode session log records: %w", err)
		}
		if log.Records == nil {
			log.Records = []connector.LogRecord{}
		}
		out[log.Category] = &log
	}
	return out, rows.Err()
}
