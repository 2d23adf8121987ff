// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/rolegate/pkg/health"
)

// SQLiteSink persists audit entries in SQLite.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the modernc driver and prepares the schema.
func OpenSQLite(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sink, err := NewSQLiteSink(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

// NewSQLiteSink wraps db and ensures the schema exists.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Check implements health.Checker by pinging the database.
func (s *SQLiteSink) Check(ctx context.Context) health.Result {
	return health.Ping(s.db.PingContext).Check(ctx)
}

// Record stores a single entry.
func (s *SQLiteSink) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, run_id, kind, operation, role, tenant_id, actor_id, success, error_text, duration_ns, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RunID,
		string(e.Kind),
		e.Operation,
		e.Role,
		e.TenantID,
		e.ActorID,
		e.Success,
		e.Error,
		int64(e.Duration),
		e.At.UTC(),
	)
	return err
}

// List returns entries matching filter, oldest first.
func (s *SQLiteSink) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, run_id, kind, operation, role, tenant_id, actor_id, success, error_text, duration_ns, at
		FROM audit_entries
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Kind != "" {
		addFilter("kind = ?", string(filter.Kind))
	}
	if filter.Role != "" {
		addFilter("role = ?", filter.Role)
	}
	if filter.Operation != "" {
		addFilter("operation = ?", filter.Operation)
	}
	query += where + " ORDER BY at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			kind     string
			duration int64
			at       sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.Operation, &e.Role, &e.TenantID,
			&e.ActorID, &e.Success, &e.Error, &duration, &at); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Duration = time.Duration(duration)
		if at.Valid {
			e.At = at.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			kind TEXT NOT NULL,
			operation TEXT NOT NULL,
			role TEXT NOT NULL,
			tenant_id TEXT,
			actor_id TEXT,
			success BOOLEAN NOT NULL,
			error_text TEXT,
			duration_ns INTEGER,
			at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_entries(kind);
		CREATE INDEX IF NOT EXISTS idx_audit_role ON audit_entries(role);
	`)
	return err
}
