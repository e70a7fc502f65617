// Package history append-only logs every committed status transition
// (layer, vks, source, timestamp) to a local SQLite database for
// diagnostics. It is read-only to the core reducer: SupervisorState's
// in-memory authority is never reconstructed from, or gated on, this log.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/google/uuid"

	"github.com/kanata-switcher/kanata-focusd/internal/controlbus"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id         TEXT PRIMARY KEY,
	occurred_at TEXT NOT NULL,
	layer      TEXT NOT NULL,
	vks        TEXT NOT NULL,
	source     TEXT NOT NULL
);
`

// Store appends status transitions to a SQLite-backed log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// bootstraps its schema with a single idempotent CREATE TABLE IF NOT
// EXISTS — there is exactly one table, so a migration framework would be
// pure overhead here (see DESIGN.md).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record appends one status transition, stamped with occurredAt.
func (s *Store) Record(ctx context.Context, status controlbus.Status, occurredAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, occurred_at, layer, vks, source) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		occurredAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
		status.Layer,
		strings.Join(status.Vks, ","),
		string(status.Source),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Transition is one row read back from the log.
type Transition struct {
	ID         string
	OccurredAt time.Time
	Layer      string
	Vks        []string
	Source     controlbus.Source
}

// Recent returns the most recent limit transitions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, layer, vks, source FROM transitions ORDER BY occurred_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t          Transition
			occurredAt string
			vks        string
			source     string
		)
		if err := rows.Scan(&t.ID, &occurredAt, &t.Layer, &vks, &source); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		t.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse occurred_at: %w", err)
		}
		t.Source = controlbus.Source(source)
		if vks != "" {
			t.Vks = strings.Split(vks, ",")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
