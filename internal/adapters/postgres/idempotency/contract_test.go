//go:build integration

package idempotency

import (
	"testing"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/testutil"
	idempotencyport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool), nil
	})
}
