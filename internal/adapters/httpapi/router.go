package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
)

type RouterOptions struct {
	// AuthMiddleware guards every staff route. Nil leaves them open.
	AuthMiddleware func(http.Handler) http.Handler
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// PhotoDir is served at /photos/ when set (filesystem blob backend).
	PhotoDir string
	// Idempotency enables Idempotency-Key replay on staff writes when set.
	Idempotency idempotency.Store
	Logger      *zap.Logger
}

// NewRouter constructs the API HTTP router.
//
// Applications are public; everything under /v1/{kind}/records and the
// reporting endpoints requires a staff subject.
func NewRouter(api *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Logger != nil {
		r.Use(accessLog(opts.Logger))
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.PhotoDir != "" {
		fs := http.StripPrefix("/photos/", http.FileServer(http.Dir(opts.PhotoDir)))
		r.Method(http.MethodGet, "/photos/*", fs)
	}

	r.Route("/v1/{kind}", func(r chi.Router) {
		r.Use(api.kindContext)
		r.Post("/applications", api.SubmitApplication)

		r.Group(func(r chi.Router) {
			if opts.AuthMiddleware != nil {
				r.Use(opts.AuthMiddleware)
			}
			r.Get("/records", api.ListRecords)
			r.Get("/records/{id}", api.GetRecord)
			r.Get("/print-queue", api.PrintQueue)
			r.Get("/stats", api.Stats)
			r.Get("/rejections", api.ListRejections)

			r.Group(func(r chi.Router) {
				r.Use(newIdempotencyMiddleware(opts.Idempotency, opts.Logger))
				r.Patch("/records/{id}", api.UpdateRecord)
				r.Post("/records/{id}/transitions/{op}", api.TransitionRecord)
				r.Post("/records/{id}/reject", api.RejectRecord)
				r.Post("/records/{id}/photo/crop", api.CropPhoto)
				r.Post("/batches", api.RunBatch)
			})
		})
	})
	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
