package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore persists sessions as JSONB rows in Postgres:
//
//	CREATE TABLE sessions (
//	    actor_id   BIGINT PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// Update takes a transaction-scoped advisory lock on the key, so callers
// serialize per key across processes as well.
type SQLStore[S any] struct {
	db      *sqlx.DB
	ttl     time.Duration
	onEvict EvictFunc[S]
	now     func() time.Time
}

type sessionRow struct {
	ActorID   int64     `db:"actor_id"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewSQLStore returns a store over db. ttl <= 0 disables expiry.
func NewSQLStore[S any](db *sqlx.DB, ttl time.Duration, onEvict EvictFunc[S]) *SQLStore[S] {
	return &SQLStore[S]{db: db, ttl: ttl, onEvict: onEvict, now: time.Now}
}

func (s *SQLStore[S]) decode(row sessionRow) (S, error) {
	var v S
	if err := json.Unmarshal(row.Payload, &v); err != nil {
		return v, fmt.Errorf("state: decode session %d: %w", row.ActorID, err)
	}
	return v, nil
}

func (s *SQLStore[S]) live(row sessionRow) bool {
	return s.ttl <= 0 || s.now().Sub(row.UpdatedAt) <= s.ttl
}

// Get returns the live value for key.
func (s *SQLStore[S]) Get(ctx context.Context, key int64) (S, bool, error) {
	var zero S
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT actor_id, payload, updated_at FROM sessions WHERE actor_id = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("state: get session %d: %w", key, err)
	}
	if !s.live(row) {
		return zero, false, nil
	}
	v, err := s.decode(row)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Update applies fn inside a transaction holding the key's advisory lock.
func (s *SQLStore[S]) Update(ctx context.Context, key int64, fn UpdateFunc[S]) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("state: lock session %d: %w", key, err)
	}

	var (
		cur     S
		present bool
		row     sessionRow
	)
	switch qerr := tx.GetContext(ctx, &row,
		`SELECT actor_id, payload, updated_at FROM sessions WHERE actor_id = $1`, key); {
	case errors.Is(qerr, sql.ErrNoRows):
	case qerr != nil:
		return fmt.Errorf("state: load session %d: %w", key, qerr)
	default:
		if cur, err = s.decode(row); err != nil {
			return err
		}
		present = true
		if !s.live(row) {
			if s.onEvict != nil {
				s.onEvict(ctx, key, cur)
			}
			var zero S
			cur, present = zero, false
		}
	}

	next, action, err := fn(cur, present)
	if err != nil {
		return err
	}

	switch {
	case action == Save:
		payload, mErr := json.Marshal(next)
		if mErr != nil {
			err = fmt.Errorf("state: encode session %d: %w", key, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (actor_id, payload, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (actor_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
			key, payload, s.now().UTC()); err != nil {
			return fmt.Errorf("state: save session %d: %w", key, err)
		}
	case action == Delete || (row.ActorID != 0 && !present):
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE actor_id = $1`, key); err != nil {
			return fmt.Errorf("state: delete session %d: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Clear removes the row for key.
func (s *SQLStore[S]) Clear(ctx context.Context, key int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE actor_id = $1`, key); err != nil {
		return fmt.Errorf("state: clear session %d: %w", key, err)
	}
	return nil
}

// Sweep deletes expired rows and reports them to the evict hook.
func (s *SQLStore[S]) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows,
		`DELETE FROM sessions WHERE updated_at < $1 RETURNING actor_id, payload, updated_at`,
		s.now().Add(-s.ttl).UTC()); err != nil {
		return 0, fmt.Errorf("state: sweep: %w", err)
	}
	if s.onEvict != nil {
		for _, row := range rows {
			if v, err := s.decode(row); err == nil {
				s.onEvict(ctx, row.ActorID, v)
			}
		}
	}
	return len(rows), nil
}
