// Package runtime wires configured adapters into the application services.
// Both binaries build their dependencies here.
package runtime

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	fsblob "github.com/Voupi/sistema-gestion-addag/internal/adapters/blob/fs"
	s3blob "github.com/Voupi/sistema-gestion-addag/internal/adapters/blob/s3"
	memidempotency "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/idempotency"
	memstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/recordstore"
	memseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/sequence"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/notify"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres"
	pgidempotency "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/idempotency"
	pgstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/recordstore"
	pgseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres/sequence"
	redisseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/redis"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/sqlite"
	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/app/photos"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	platformclock "github.com/Voupi/sistema-gestion-addag/internal/platform/clock"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/config"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/metrics"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

// App holds the wired services and owns backend connections.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store       recordstore.Store
	Sequence    sequence.Sequence
	Idempotency idempotency.Store
	Blobs       blobstore.Store
	Sender      notifier.Sender

	Applicants *applicants.Service
	Lifecycle  *lifecycle.Service
	Batch      *batch.Service
	Photos     *photos.Service

	// PhotoDir is the served directory when photos live on the local filesystem.
	PhotoDir string

	closers []func()
}

// Build connects every configured backend. On error, anything already opened is closed.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	store, storeSeq, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = store

	if app.Sequence, err = app.openSequence(ctx, storeSeq); err != nil {
		return nil, err
	}
	if app.Blobs, err = app.openBlobs(ctx); err != nil {
		return nil, err
	}
	if app.Sender, err = app.openSender(ctx); err != nil {
		return nil, err
	}

	policy, err := lifecycle.PolicyFromSetting(cfg.Notify.ReadyOn)
	if err != nil {
		return nil, err
	}

	clk := platformclock.NewSystemClock()
	lcOpts := []lifecycle.Option{
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithMetrics(app.Metrics),
		lifecycle.WithPolicy(policy),
	}
	if cfg.Photo.PurgeOnReject {
		lcOpts = append(lcOpts, lifecycle.WithPhotoPurge(app.Blobs))
	}
	app.Lifecycle = lifecycle.NewService(app.Store, app.Sequence, app.Sender, clk, lcOpts...)
	app.Batch = batch.NewService(app.Store, app.Sender, clk,
		batch.WithLogger(log.Named("batch")),
		batch.WithMetrics(app.Metrics),
		batch.WithPolicy(policy),
		batch.WithConcurrency(cfg.Batch.NotifyConcurrency),
	)
	app.Photos = photos.NewService(app.Store, app.Blobs, clk, log.Named("photos"), app.Metrics)
	app.Applicants = applicants.NewService(app.Store, app.Blobs, app.Sender, clk, log.Named("applicants"), app.Metrics)
	app.Applicants.MaxPhotoBytes = cfg.Photo.MaxUploadBytes

	log.Info("runtime ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("sequence", cfg.Sequence.Backend),
		zap.String("blob", cfg.Blob.Backend),
		zap.String("notify", cfg.Notify.Backend),
		zap.String("ready_on", cfg.Notify.ReadyOn))
	return app, nil
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(f func()) { a.closers = append(a.closers, f) }

func (a *App) openStore(ctx context.Context) (recordstore.Store, sequence.Sequence, error) {
	cfg := a.Config.Storage
	switch cfg.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		a.onClose(pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		a.Idempotency = pgidempotency.NewStore(pool)
		return pgstore.NewStore(pool), pgseq.NewSequence(pool), nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		a.onClose(func() {
			if err := db.Close(); err != nil {
				a.Log.Warn("close sqlite", zap.Error(err))
			}
		})
		a.Idempotency = sqlite.NewIdempotencyStore(db)
		return sqlite.NewStore(db), sqlite.NewSequence(db), nil
	default:
		a.Log.Warn("using in-memory record store; data is lost on exit")
		a.Idempotency = memidempotency.NewStore()
		return memstore.NewStore(), memseq.NewSequence(), nil
	}
}

func (a *App) openSequence(ctx context.Context, storeSeq sequence.Sequence) (sequence.Sequence, error) {
	if a.Config.Sequence.Backend != "redis" {
		return storeSeq, nil
	}
	client, err := redisseq.NewClient(ctx, a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.onClose(func() { _ = client.Close() })
	seq := redisseq.NewSequence(client, redisseq.WithKeyPrefix(a.Config.Redis.KeyPrefix))

	// Card numbers already issued by the store's own counter must not be reissued.
	if r, ok := storeSeq.(sequence.Reader); ok {
		for _, kind := range domain.Kinds {
			issued, err := r.Current(ctx, kind)
			if err != nil {
				return nil, fmt.Errorf("read %s card sequence: %w", kind, err)
			}
			if err := seq.Floor(ctx, kind, issued); err != nil {
				return nil, fmt.Errorf("redis: %w", err)
			}
		}
	}
	return seq, nil
}

func (a *App) openBlobs(ctx context.Context) (blobstore.Store, error) {
	cfg := a.Config.Blob
	switch cfg.Backend {
	case "s3":
		client, err := s3blob.NewClient(ctx, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		return s3blob.NewStore(client, s3blob.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	default:
		store, err := fsblob.NewStore(cfg.FSDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		a.PhotoDir = store.Root()
		return store, nil
	}
}

func (a *App) openSender(ctx context.Context) (notifier.Sender, error) {
	cfg := a.Config.Notify
	renderer, err := notify.NewRenderer(notify.Branding{OrgName: cfg.OrgName, FormURL: cfg.FormURL})
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "smtp":
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPass,
			From:        cfg.From,
			ReplyTo:     cfg.ReplyTo,
			ImplicitTLS: cfg.SMTPTLS,
			Timeout:     cfg.Timeout,
		}, renderer), nil
	case "ses":
		client, err := notify.NewSESClient(ctx, cfg.SESRegion)
		if err != nil {
			return nil, err
		}
		return notify.NewSESSender(client, renderer, cfg.From, cfg.ReplyTo), nil
	default:
		return notify.NewLogSender(a.Log.Named("notify"), renderer), nil
	}
}
