package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotentBody = 1 << 20
)

// newIdempotencyMiddleware replays the stored 2xx response when a staff
// write is retried with the same Idempotency-Key and body. A key is bound to
// its body by the first 2xx response; reusing it afterwards with a different
// body is a 409. Requests without the header pass through.
func newIdempotencyMiddleware(store idempotency.Store, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if store == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil || len(body) > maxIdempotentBody {
				writeBadRequest(w, r, "request body too large", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			sub, _ := SubjectFromContext(r.Context())
			ctx := r.Context()
			metaFP := idempotency.Fingerprint{
				Key:     idempotency.Key(key),
				Subject: domain.SubjectID(sub),
				Method:  r.Method,
				Route:   r.URL.Path,
			}
			meta, bound, err := store.Get(ctx, metaFP)
			if err != nil {
				writeAppError(w, r, log, apperr.Unavailable("idempotency lookup", err))
				return
			}
			if bound && string(meta.Body) != bodyHash {
				writeOASError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}

			respFP := metaFP
			respFP.BodyHash = bodyHash
			if rec, ok, err := store.Get(ctx, respFP); err != nil {
				writeAppError(w, r, log, apperr.Unavailable("idempotency lookup", err))
				return
			} else if ok {
				w.Header().Set("Content-Type", rec.ContentType)
				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(rec.StatusCode)
				_, _ = w.Write(rec.Body)
				return
			}

			var captured bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			// Failed attempts leave the key unbound so a corrected retry can reuse it.
			if ww.Status() < 200 || ww.Status() >= 300 {
				return
			}
			now := time.Now().UTC()
			if !bound {
				if err := store.Put(ctx, metaFP, idempotency.Record{
					ContentType: "text/plain",
					Body:        []byte(bodyHash),
					CreatedAt:   now,
				}); err != nil {
					log.Warn("store idempotency key", zap.String("route", metaFP.Route), zap.Error(err))
				}
			}
			if err := store.Put(ctx, respFP, idempotency.Record{
				StatusCode:  ww.Status(),
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
				CreatedAt:   now,
			}); err != nil {
				log.Warn("store idempotent response", zap.String("route", respFP.Route), zap.Error(err))
			}
		})
	}
}
