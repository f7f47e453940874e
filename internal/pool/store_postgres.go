package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"firegate/internal/domain"
	"firegate/pkg/platform/sentinel"
)

// PostgresStore persists pool entries in PostgreSQL. State transitions
// are conditional UPDATEs keyed on the current state, so each entry acts
// as its own serialization point without table-level locking.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pool store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the pool table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS pool_entries (
			firefighter_id  TEXT PRIMARY KEY,
			target_system   TEXT NOT NULL,
			tier            TEXT NOT NULL,
			state           TEXT NOT NULL DEFAULT 'free',
			held_by         TEXT NOT NULL DEFAULT '',
			window_start    TIMESTAMPTZ,
			window_end      TIMESTAMPTZ,
			cooldown_until  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS pool_entries_system_idx ON pool_entries (target_system, state);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure pool schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, e *Entry) error {
	state := e.State
	if state == "" {
		state = StateFree
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pool_entries (firefighter_id, target_system, tier, state, held_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (firefighter_id) DO NOTHING`,
		e.FirefighterID, e.TargetSystem, string(e.Tier), string(state), e.HeldBy,
	)
	if err != nil {
		return fmt.Errorf("insert pool entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const entryColumns = `firefighter_id, target_system, tier, state, held_by, window_start, window_end, cooldown_until`

func (s *PostgresStore) Get(ctx context.Context, firefighterID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM pool_entries WHERE firefighter_id = $1`, firefighterID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return e, err
}

func (s *PostgresStore) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM pool_entries ORDER BY firefighter_id`)
	if err != nil {
		return nil, fmt.Errorf("list pool entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Reserve(ctx context.Context, targetSystem string, tier domain.Tier, window domain.Window, holder string) (*Entry, error) {
	// Tier order is encoded in SQL so the lowest-ID eligible entry can be
	// claimed in a single guarded UPDATE.
	row := s.db.QueryRowContext(ctx, `
		UPDATE pool_entries SET state = 'reserved', held_by = $1, window_start = $2, window_end = $3
		WHERE firefighter_id = (
			SELECT firefighter_id FROM pool_entries
			WHERE state = 'free' AND target_system = $4
			  AND CASE tier WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 0 END
			      >= CASE $5 WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 5 END
			ORDER BY firefighter_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+entryColumns,
		holder, window.Start, window.End, targetSystem, string(tier),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNoCapacity
	}
	return e, err
}

func (s *PostgresStore) Activate(ctx context.Context, firefighterID, holder string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pool_entries SET state = 'active'
		WHERE firefighter_id = $1 AND held_by = $2 AND state = 'reserved'`,
		firefighterID, holder,
	)
	if err != nil {
		return fmt.Errorf("activate pool entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.stateMismatch(ctx, firefighterID, holder, StateActive)
	}
	return nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, firefighterID, holder string, cooldownUntil time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pool_entries
		SET state = 'cooling_down', held_by = '', window_start = NULL, window_end = NULL, cooldown_until = $3
		WHERE firefighter_id = $1 AND held_by = $2 AND state = 'active'`,
		firefighterID, holder, cooldownUntil,
	)
	if err != nil {
		return fmt.Errorf("deactivate pool entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.stateMismatch(ctx, firefighterID, "", StateCoolingDown)
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, firefighterID, holder string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pool_entries
		SET state = 'free', held_by = '', window_start = NULL, window_end = NULL
		WHERE firefighter_id = $1 AND held_by = $2 AND state = 'reserved'`,
		firefighterID, holder,
	)
	if err != nil {
		return fmt.Errorf("release pool entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.stateMismatch(ctx, firefighterID, "", StateFree)
	}
	return nil
}

func (s *PostgresStore) SweepCooldown(ctx context.Context, now time.Time) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE pool_entries SET state = 'free', cooldown_until = NULL
		WHERE state = 'cooling_down' AND cooldown_until <= $1
		RETURNING `+entryColumns, now)
	if err != nil {
		return nil, fmt.Errorf("sweep cooldown: %w", err)
	}
	defer rows.Close()

	var freed []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		freed = append(freed, e)
	}
	return freed, rows.Err()
}

// stateMismatch distinguishes idempotent repeats from real conflicts
// after a guarded UPDATE matched nothing.
func (s *PostgresStore) stateMismatch(ctx context.Context, firefighterID, holder string, settled EntryState) error {
	e, err := s.Get(ctx, firefighterID)
	if err != nil {
		return err
	}
	if e.State == settled && (holder == "" || e.HeldBy == holder) {
		return nil
	}
	return sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e             Entry
		tier, state   string
		wStart, wEnd  sql.NullTime
		cooldownUntil sql.NullTime
	)
	err := row.Scan(&e.FirefighterID, &e.TargetSystem, &tier, &state, &e.HeldBy, &wStart, &wEnd, &cooldownUntil)
	if err != nil {
		return nil, err
	}
	e.Tier = domain.Tier(tier)
	e.State = EntryState(state)
	if wStart.Valid {
		e.ReservedWindow.Start = wStart.Time
	}
	if wEnd.Valid {
		e.ReservedWindow.End = wEnd.Time
	}
	if cooldownUntil.Valid {
		e.CooldownUntil = cooldownUntil.Time
	}
	return &e, nil
}
