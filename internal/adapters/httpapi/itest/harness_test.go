package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/httpapi"
	memblob "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/blobstore"
	memclock "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/clock"
	memstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/recordstore"
	memseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/sequence"
	memsender "github.com/Voupi/sistema-gestion-addag/internal/adapters/notify/memory"
	"github.com/Voupi/sistema-gestion-addag/internal/adapters/sqlite"
	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/app/photos"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
)

// openPostgres is set by the integration-tagged build.
var openPostgres func(t *testing.T) (recordstore.Store, sequence.Sequence)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "sqlite":
		return []backend{backendSQLite}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		out := []backend{backendMemory, backendSQLite}
		if openPostgres != nil {
			out = append(out, backendPostgres)
		}
		return out
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	sender  *memsender.Sender
	clk     *memclock.ManualClock
}

func openBackend(t *testing.T, b backend) (recordstore.Store, sequence.Sequence) {
	t.Helper()
	switch b {
	case backendMemory:
		return memstore.NewStore(), memseq.NewSequence()
	case backendSQLite:
		db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "carnets.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return sqlite.NewStore(db), sqlite.NewSequence(db)
	case backendPostgres:
		if openPostgres == nil {
			t.Skip("postgres backend requires -tags=integration")
		}
		return openPostgres(t)
	default:
		t.Fatalf("unknown backend: %s", b)
		return nil, nil
	}
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	store, seq := openBackend(t, b)
	clk := memclock.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	blobs := memblob.NewStore("")
	sender := memsender.NewSender()

	api := httpapi.NewServer(
		applicants.NewService(store, blobs, sender, clk, nil, nil),
		lifecycle.NewService(store, seq, sender, clk),
		batch.NewService(store, sender, clk),
		photos.NewService(store, blobs, clk, nil, nil),
		nil,
	)

	// Empty default subject: requests MUST provide X-Debug-Subject, allowing
	// auth-failure coverage.
	authMW := httpapi.NewDevAuthMiddleware("")
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		sender:  sender,
		clk:     clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) do(t *testing.T, req *http.Request, subject string) (int, []byte) {
	t.Helper()
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(t, req, subject)
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}
