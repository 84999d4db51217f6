package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Sequence draws card numbers from a Postgres SEQUENCE per kind. nextval is
// non-transactional, so a number consumed by a losing approval is never reused.
type Sequence struct {
	pool *pgxpool.Pool
}

func NewSequence(pool *pgxpool.Pool) *Sequence {
	return &Sequence{pool: pool}
}

func (s *Sequence) Next(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid record kind %q", kind)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval($1::regclass)`, kind.SequenceName()).Scan(&n); err != nil {
		return 0, postgres.MapError(err)
	}
	return n, nil
}

// Current reads the sequence without consuming a value.
func (s *Sequence) Current(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid record kind %q", kind)
	}
	q := `SELECT CASE WHEN is_called THEN last_value ELSE 0 END FROM ` + pgx.Identifier{kind.SequenceName()}.Sanitize()
	var n int64
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, postgres.MapError(err)
	}
	return n, nil
}
