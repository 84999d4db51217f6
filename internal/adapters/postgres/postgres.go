// Package postgres holds the pgx connection helpers shared by the Postgres adapters.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

// UniqueViolationCode is the SQLSTATE for unique_violation.
const UniqueViolationCode = "23505"

//go:embed schema.sql
var schemaSQL string

type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// NewPool parses the URL, applies opts and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, MapError(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, MapError(err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", MapError(err))
	}
	return nil
}

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// MapError maps driver failures onto recordstore sentinels. Unknown errors pass through.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := AsPgError(err); ok {
		switch {
		case pe.Code == UniqueViolationCode:
			return fmt.Errorf("%w: %s", recordstore.ErrDuplicateDocument, pe.ConstraintName)
		case len(pe.Code) == 5 && pe.Code[:2] == "08":
			return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
	}
	return err
}
