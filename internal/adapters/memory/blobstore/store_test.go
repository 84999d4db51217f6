package blobstore

import (
	"testing"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	blobstoreport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
)

func TestContract_BlobStore(t *testing.T) {
	contracttest.RunBlobStore(t, func(t *testing.T) (blobstoreport.Store, func()) {
		t.Helper()
		return NewStore("https://cdn.test/bucket/"), nil
	})
}

func TestStore_PathFromForeignURL(t *testing.T) {
	t.Parallel()

	s := NewStore("https://cdn.test/bucket")
	if _, ok := s.PathFromURL("https://elsewhere.test/bucket/a.jpg"); ok {
		t.Fatalf("PathFromURL accepted a foreign URL")
	}
}
