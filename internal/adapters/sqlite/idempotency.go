package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
)

// IdempotencyStore implements idempotency.Store on the shared database.
type IdempotencyStore struct {
	db *sql.DB
}

func NewIdempotencyStore(d *DB) *IdempotencyStore {
	return &IdempotencyStore{db: d.db}
}

func (s *IdempotencyStore) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var (
		rec       idempotency.Record
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = ? AND subject = ? AND method = ? AND route = ? AND body_hash = ?`,
		string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
	).Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, mapError(err)
	}
	if rec.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return idempotency.Record{}, false, err
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, subject, method, route, body_hash, status_code, content_type, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key, subject, method, route, body_hash) DO UPDATE SET
			status_code = excluded.status_code,
			content_type = excluded.content_type,
			body = excluded.body,
			created_at = excluded.created_at`,
		string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
		rec.StatusCode, rec.ContentType, body, formatTime(createdAt),
	)
	return mapError(err)
}
