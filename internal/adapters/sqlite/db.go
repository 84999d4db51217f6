// Package sqlite is the embedded single-host backend: record store, card
// sequence and idempotency keys on one SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on incompatible schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode             = 5
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// DB wraps the SQLite handle shared by Store and Sequence.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma journal_mode: %w", err)
		}
	}

	d := &DB{db: db, path: path}
	if err := d.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// dsn adds per-connection pragmas so every pooled connection gets them.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	var tableExists int
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 1 {
		var version int
		if err := d.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: database has v%d, expected v%d", ErrSchemaMismatch, version, schemaVersion)
		}
		return nil
	}

	if _, err := d.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

// mapError maps driver failures onto recordstore sentinels. Busy is reported
// as unavailable; the caller decides whether to re-run.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if code, ok := sqliteCode(err); ok {
		switch {
		case code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", recordstore.ErrDuplicateDocument, err)
		case code&0xff == sqliteBusyCode:
			return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", recordstore.ErrDuplicateDocument, err)
	}
	if strings.Contains(msg, "database is locked") || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty time")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
