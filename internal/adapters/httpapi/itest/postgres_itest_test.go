//go:build integration

package itest

import (
	"testing"

	pgstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/recordstore"
	pgseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/sequence"
	postgres_testutil "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/testutil"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

func init() {
	openPostgres = func(t *testing.T) (recordstore.Store, sequence.Sequence) {
		pool := postgres_testutil.OpenMigratedPool(t)
		return pgstore.NewStore(pool), pgseq.NewSequence(pool)
	}
}
