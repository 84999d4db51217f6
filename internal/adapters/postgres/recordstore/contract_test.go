//go:build integration

package recordstore

import (
	"context"
	"testing"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/testutil"
	recordstoreport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

func TestContract_PostgresRecordStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunRecordStore(t, func(t *testing.T) (recordstoreport.Store, func()) {
		t.Helper()
		cleanup := func() {
			_, _ = pool.Exec(context.Background(), `TRUNCATE membership_records, parking_records, rejected_archive`)
		}
		cleanup()
		return NewStore(pool), cleanup
	})
}
