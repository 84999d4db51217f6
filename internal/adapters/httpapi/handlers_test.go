package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	memblob "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/blobstore"
	memclock "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/clock"
	memidempotency "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/idempotency"
	memstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/recordstore"
	memseq "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/sequence"
	memsender "github.com/Voupi/sistema-gestion-addag/internal/adapters/notify/memory"
	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/app/photos"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

type env struct {
	handler http.Handler
	store   *memstore.Store
	blobs   *memblob.Store
	sender  *memsender.Sender
	clk     *memclock.ManualClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:  memstore.NewStore(),
		blobs:  memblob.NewStore(""),
		sender: memsender.NewSender(),
		clk:    memclock.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	api := NewServer(
		applicants.NewService(e.store, e.blobs, e.sender, e.clk, nil, nil),
		lifecycle.NewService(e.store, memseq.NewSequence(), e.sender, e.clk),
		batch.NewService(e.store, e.sender, e.clk),
		photos.NewService(e.store, e.blobs, e.clk, nil, nil),
		nil,
	)
	e.handler = NewRouter(api, RouterOptions{
		AuthMiddleware: NewDevAuthMiddleware(""),
		Idempotency:    memidempotency.NewStore(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	return e
}

func (e *env) seed(t *testing.T, kind domain.RecordKind, seq int, state domain.State) domain.ApplicantRecord {
	t.Helper()
	rec := contracttest.NewRecord(kind, seq, state, e.clk.Now())
	if err := e.store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func (e *env) do(t *testing.T, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithHeaders(t, method, path, subject, body, nil)
}

func (e *env) doWithHeaders(t *testing.T, method, path, subject string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, rr.Body.String())
	}
	return out
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, want, rr.Body.String())
	}
}

func requireError(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantCode string) ErrorResponse {
	t.Helper()
	requireStatus(t, rr, wantStatus)
	er := decode[ErrorResponse](t, rr)
	if er.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", er.Error.Code, wantCode, rr.Body.String())
	}
	return er
}

func multipartApplication(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("photo", "foto.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(photo)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func pngPhoto(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{B: 180, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	e := newEnv(t)
	requireStatus(t, e.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	requireStatus(t, e.do(t, http.MethodGet, "/metrics", "", nil), http.StatusOK)
}

func TestStaffRoutesRequireSubject(t *testing.T) {
	e := newEnv(t)
	requireError(t, e.do(t, http.MethodGet, "/v1/membership/records", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")
	requireStatus(t, e.do(t, http.MethodGet, "/v1/membership/records", "staff-1", nil), http.StatusOK)
}

func TestUnknownKind_404(t *testing.T) {
	e := newEnv(t)
	requireError(t, e.do(t, http.MethodGet, "/v1/visitors/records", "staff-1", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestSubmitApplication(t *testing.T) {
	e := newEnv(t)
	fields := map[string]string{
		"firstNames":     "ana lucía",
		"lastNames":      "pérez",
		"documentType":   "DPI",
		"documentNumber": "1234 56789 0123",
		"birthDate":      "2001-02-03",
		"phone":          "55551234",
		"department":     "Guatemala",
		"email":          "ana@example.com",
	}
	body, ct := multipartApplication(t, fields, pngPhoto(t, 40, 48))
	req := httptest.NewRequest(http.MethodPost, "/v1/membership/applications", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	requireStatus(t, rr, http.StatusCreated)

	got := decode[RecordResponse](t, rr).Record
	if got.State != "PENDIENTE" || got.DocumentNumber != "1234567890123" || got.BirthDate != "2001-02-03" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if role, err := got.Role.Get(); err != nil || role != "ATHLETE" {
		t.Fatalf("role=%q err=%v", role, err)
	}
	if !got.CardNumber.IsNull() || !got.PhotoURLFinal.IsNull() {
		t.Fatalf("expected null cardNumber and photoUrlFinal: %s", rr.Body.String())
	}

	// Same document again is a conflict.
	body, ct = multipartApplication(t, fields, pngPhoto(t, 40, 48))
	req = httptest.NewRequest(http.MethodPost, "/v1/membership/applications", body)
	req.Header.Set("Content-Type", ct)
	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	requireError(t, rr, http.StatusConflict, "DUPLICATE_DOCUMENT")
}

func TestSubmitApplication_ValidationDetails(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartApplication(t, map[string]string{"documentType": "DPI", "documentNumber": "12"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/parking/applications", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	er := requireError(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, err := er.Error.Details.Get()
	if err != nil || len(details) == 0 {
		t.Fatalf("expected validation details, body=%s", rr.Body.String())
	}
}

func TestTransitions(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	path := "/v1/membership/records/" + string(rec.ID) + "/transitions/"

	rr := e.do(t, http.MethodPost, path+"approve", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	res := decode[TransitionResponse](t, rr)
	card, err := res.Record.CardNumber.Get()
	if err != nil || card != "M-000001" || !res.Changed || res.From != "PENDIENTE" {
		t.Fatalf("unexpected approve result: %s", rr.Body.String())
	}

	rr = e.do(t, http.MethodPost, path+"approve", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	if decode[TransitionResponse](t, rr).Changed {
		t.Fatalf("second approve should be a no-op")
	}

	er := requireError(t, e.do(t, http.MethodPost, path+"mark-delivered", "staff-1", nil), http.StatusConflict, "INVALID_TRANSITION")
	if !er.Error.RequestId.IsSpecified() {
		t.Fatalf("expected requestId on error")
	}

	requireError(t, e.do(t, http.MethodPost, path+"teleport", "staff-1", nil), http.StatusNotFound, "NOT_FOUND")
	requireError(t, e.do(t, http.MethodPost, "/v1/membership/records/missing/transitions/approve", "staff-1", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestMarkReadyReportsNotification(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindParking, 1, domain.StateInProcess)

	rr := e.do(t, http.MethodPost, "/v1/parking/records/"+string(rec.ID)+"/transitions/mark_ready", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	res := decode[TransitionResponse](t, rr)
	if res.Record.State != "LISTO" || !res.Notified {
		t.Fatalf("unexpected result: %s", rr.Body.String())
	}
	if e.sender.Calls() != 1 {
		t.Fatalf("sender calls=%d want=1", e.sender.Calls())
	}
}

func TestRejectAndListRejections(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	path := "/v1/membership/records/" + string(rec.ID)

	requireError(t, e.do(t, http.MethodPost, path+"/reject", "staff-1", RejectRequest{Reason: "  "}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr := e.do(t, http.MethodPost, path+"/reject", "staff-1", RejectRequest{Reason: "Foto borrosa"})
	requireStatus(t, rr, http.StatusOK)
	rej := decode[RejectionResponse](t, rr).Rejection
	if rej.Reason != "Foto borrosa" || rej.Origin != "membership" || rej.RecordID != string(rec.ID) {
		t.Fatalf("unexpected rejection: %s", rr.Body.String())
	}

	requireError(t, e.do(t, http.MethodGet, path, "staff-1", nil), http.StatusNotFound, "NOT_FOUND")

	rr = e.do(t, http.MethodGet, "/v1/membership/rejections", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	if n := len(decode[RejectionListResponse](t, rr).Rejections); n != 1 {
		t.Fatalf("rejections=%d want=1", n)
	}
}

func TestRejectUnknownField_400(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	rr := e.do(t, http.MethodPost, "/v1/membership/records/"+string(rec.ID)+"/reject", "staff-1", map[string]string{"motivo": "x"})
	requireError(t, rr, http.StatusBadRequest, "BAD_REQUEST")
}

func TestUpdateRecord_PatchSemantics(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	path := "/v1/membership/records/" + string(rec.ID)

	rr := e.do(t, http.MethodPatch, path, "staff-1", json.RawMessage(`{"phone":"44443333","email":null}`))
	requireStatus(t, rr, http.StatusOK)
	got := decode[RecordResponse](t, rr).Record
	if got.Phone != "44443333" || !got.Email.IsNull() || got.FirstNames != rec.FirstNames {
		t.Fatalf("unexpected record: %s", rr.Body.String())
	}

	requireError(t, e.do(t, http.MethodPatch, path, "staff-1", json.RawMessage(`{"documentNumber":"abc"}`)), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestCropPhoto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	url, err := e.blobs.Upload(ctx, "orig.png", pngPhoto(t, 300, 400), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	rec := contracttest.NewRecord(domain.KindMembership, 1, domain.StateApproved, e.clk.Now())
	rec.PhotoURL = url
	if err := e.store.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	path := "/v1/membership/records/" + string(rec.ID) + "/photo/crop"

	rr := e.do(t, http.MethodPost, path, "staff-1", CropRequest{X: 10, Y: 10, Width: 139, Height: 166})
	requireStatus(t, rr, http.StatusOK)
	got := decode[RecordResponse](t, rr).Record
	final, err := got.PhotoURLFinal.Get()
	if err != nil || !strings.Contains(final, "P_procesada_") || got.PrintPhotoURL != final {
		t.Fatalf("unexpected crop result: %s", rr.Body.String())
	}

	requireError(t, e.do(t, http.MethodPost, path, "staff-1", CropRequest{Width: 100, Height: 100}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	requireError(t, e.do(t, http.MethodPost, path, "staff-1", CropRequest{X: 500, Width: 139, Height: 166}), http.StatusUnprocessableEntity, "CROP_OUT_OF_BOUNDS")
}

func TestBatchAndStats(t *testing.T) {
	e := newEnv(t)
	e.seed(t, domain.KindMembership, 1, domain.StateApproved)
	e.seed(t, domain.KindMembership, 2, domain.StateReprint)
	e.seed(t, domain.KindMembership, 3, domain.StatePending)

	rr := e.do(t, http.MethodGet, "/v1/membership/records?state=EN_COLA", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	if n := decode[RecordListResponse](t, rr).Count; n != 2 {
		t.Fatalf("queue count=%d want=2", n)
	}
	requireError(t, e.do(t, http.MethodGet, "/v1/membership/records?state=PERDIDO", "staff-1", nil), http.StatusBadRequest, "BAD_REQUEST")

	rr = e.do(t, http.MethodPost, "/v1/membership/batches", "staff-1", BatchRequest{Op: "confirm-print", States: []string{"EN_COLA"}})
	requireStatus(t, rr, http.StatusOK)
	res := decode[BatchResponse](t, rr)
	if res.Affected != 2 || res.NoOp || len(res.AffectedIDs) != 2 {
		t.Fatalf("unexpected batch: %s", rr.Body.String())
	}

	rr = e.do(t, http.MethodPost, "/v1/membership/batches", "staff-1", BatchRequest{Op: "confirm_print"})
	requireStatus(t, rr, http.StatusOK)
	if !decode[BatchResponse](t, rr).NoOp {
		t.Fatalf("second batch should be a no-op: %s", rr.Body.String())
	}

	requireError(t, e.do(t, http.MethodPost, "/v1/membership/batches", "staff-1", BatchRequest{Op: "approve"}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = e.do(t, http.MethodGet, "/v1/membership/stats", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	st := decode[StatsResponse](t, rr)
	if st.Total != 3 || st.InQueue != 0 || st.Counts["IMPRESO"] != 2 || st.Counts["PENDIENTE"] != 1 {
		t.Fatalf("unexpected stats: %s", rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/v1/membership/print-queue", "staff-1", nil)
	requireStatus(t, rr, http.StatusOK)
	if n := decode[RecordListResponse](t, rr).Count; n != 0 {
		t.Fatalf("print queue=%d want=0", n)
	}
}

func TestIdempotencyKey_ReplayAndReuse(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	path := "/v1/membership/records/" + string(rec.ID) + "/reject"
	key := map[string]string{"Idempotency-Key": "reject-1"}

	first := e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "Duplicado"}, key)
	requireStatus(t, first, http.StatusOK)

	// The record is gone, so only a replay can answer 200 again.
	second := e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "Duplicado"}, key)
	requireStatus(t, second, http.StatusOK)
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected a replayed response")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if e.sender.Calls() != 1 {
		t.Fatalf("sender calls=%d want=1", e.sender.Calls())
	}

	requireError(t, e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "Otro"}, key), http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

	// Keys are scoped per subject.
	requireError(t, e.doWithHeaders(t, http.MethodPost, path, "staff-2", RejectRequest{Reason: "Duplicado"}, key), http.StatusNotFound, "NOT_FOUND")
}

func TestIdempotencyKey_FailedAttemptLeavesKeyUnbound(t *testing.T) {
	e := newEnv(t)
	rec := e.seed(t, domain.KindMembership, 1, domain.StatePending)
	path := "/v1/membership/records/" + string(rec.ID) + "/reject"
	key := map[string]string{"Idempotency-Key": "reject-blank"}

	requireError(t, e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "  "}, key), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	fixed := e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "Foto borrosa"}, key)
	requireStatus(t, fixed, http.StatusOK)
	if fixed.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("corrected retry was replayed")
	}

	// Once a 2xx is stored the key is bound to the corrected body.
	requireError(t, e.doWithHeaders(t, http.MethodPost, path, "staff-1", RejectRequest{Reason: "  "}, key), http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")
}
