package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/sqlite"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/config"
)

func testConfig(t *testing.T, storage string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Storage:  config.StorageConfig{Backend: storage, SQLitePath: filepath.Join(dir, "carnet.db")},
		Sequence: config.SequenceConfig{Backend: "store"},
		Blob:     config.BlobConfig{Backend: "fs", FSDir: filepath.Join(dir, "photos"), PublicBaseURL: "http://localhost/photos"},
		Notify:   config.NotifyConfig{Backend: "log", ReadyOn: "confirm_print"},
		Batch:    config.BatchConfig{NotifyConcurrency: 2},
		Photo:    config.PhotoConfig{MaxUploadBytes: 1 << 20, PurgeOnReject: true},
		Auth:     config.AuthConfig{Mode: "dev"},
	}
}

func TestBuild_Backends(t *testing.T) {
	for _, storage := range []string{"memory", "sqlite"} {
		storage := storage
		t.Run(storage, func(t *testing.T) {
			cfg := testConfig(t, storage)
			require.NoError(t, cfg.Validate())

			app, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			t.Cleanup(app.Close)

			assert.NotNil(t, app.Idempotency)
			assert.NotNil(t, app.Lifecycle)
			assert.NotNil(t, app.Batch)
			assert.NotNil(t, app.Photos)
			assert.Equal(t, 1<<20, app.Applicants.MaxPhotoBytes)
			assert.Equal(t, cfg.Blob.FSDir, app.PhotoDir)

			_, ok := app.Lifecycle.Policy().KindFor(lifecycle.OpConfirmPrint)
			assert.True(t, ok)

			stats, err := app.Applicants.Stats(context.Background(), domain.KindMembership)
			require.NoError(t, err)
			assert.Zero(t, stats.Total)
		})
	}
}

func TestBuild_PostgresUnreachable(t *testing.T) {
	cfg := testConfig(t, "postgres")
	cfg.Storage.DatabaseURL = "postgres://nobody@127.0.0.1:1/carnet?connect_timeout=1"

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestBuild_RedisSequenceContinuesStoreCounter(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "sqlite")

	db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	require.NoError(t, err)
	storeSeq := sqlite.NewSequence(db)
	for i := 0; i < 3; i++ {
		_, err := storeSeq.Next(ctx, domain.KindMembership)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	// A stale counter from an earlier deployment must not lower the floor.
	require.NoError(t, mr.Set("carnet:card_seq:parking", "7"))

	cfg.Sequence.Backend = "redis"
	cfg.Redis.URL = "redis://" + mr.Addr()
	require.NoError(t, cfg.Validate())

	app, err := Build(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	n, err := app.Sequence.Next(ctx, domain.KindMembership)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = app.Sequence.Next(ctx, domain.KindParking)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}
