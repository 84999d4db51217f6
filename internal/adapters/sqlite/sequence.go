package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Sequence keeps one counter row per kind. The upsert is a single statement,
// so concurrent callers never receive the same value.
type Sequence struct {
	db *sql.DB
}

func NewSequence(d *DB) *Sequence {
	return &Sequence{db: d.db}
}

func (s *Sequence) Next(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid record kind %q", kind)
	}
	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO card_sequences (kind, value) VALUES (?, 1)
         ON CONFLICT(kind) DO UPDATE SET value = value + 1
         RETURNING value`,
		string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next card number: %w", mapError(err))
	}
	return n, nil
}

func (s *Sequence) Current(ctx context.Context, kind domain.RecordKind) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM card_sequences WHERE kind = ?`, string(kind)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read card sequence: %w", mapError(err))
	}
	return n, nil
}
