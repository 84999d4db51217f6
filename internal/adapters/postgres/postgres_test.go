package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	unique := &pgconn.PgError{Code: UniqueViolationCode, ConstraintName: "parking_records_document_unique"}
	assert.ErrorIs(t, MapError(fmt.Errorf("insert: %w", unique)), recordstore.ErrDuplicateDocument)

	adminShutdown := &pgconn.PgError{Code: "08006"}
	assert.ErrorIs(t, MapError(adminShutdown), recordstore.ErrUnavailable)

	assert.ErrorIs(t, MapError(context.DeadlineExceeded), recordstore.ErrUnavailable)

	other := errors.New("syntax")
	assert.Equal(t, other, MapError(other))
	assert.NoError(t, MapError(nil))
}

func TestAsPgError(t *testing.T) {
	t.Parallel()

	pe, ok := AsPgError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23503"}))
	assert.True(t, ok)
	assert.Equal(t, "23503", pe.Code)

	_, ok = AsPgError(errors.New("plain"))
	assert.False(t, ok)
}
