//go:build integration

package sequence

import (
	"testing"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/testutil"
	sequenceport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

func TestContract_PostgresSequence(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunSequence(t, func(t *testing.T) (sequenceport.Sequence, func()) {
		t.Helper()
		return NewSequence(pool), nil
	})
}
