package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/app/photos"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/photo"
)

// multipartOverhead is the form budget on top of the photo limit.
const multipartOverhead = 1 << 20

type Server struct {
	applicants *applicants.Service
	lifecycle  *lifecycle.Service
	batch      *batch.Service
	photos     *photos.Service
	log        *zap.Logger
}

func NewServer(a *applicants.Service, lc *lifecycle.Service, b *batch.Service, p *photos.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{applicants: a, lifecycle: lc, batch: b, photos: p, log: log}
}

type kindKey struct{}

func (s *Server) kindContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := domain.ParseRecordKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeOASError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown record kind", map[string]any{"kind": chi.URLParam(r, "kind")})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey{}, kind)))
	})
}

func kindFrom(r *http.Request) domain.RecordKind {
	k, _ := r.Context().Value(kindKey{}).(domain.RecordKind)
	return k
}

func recordIDFrom(r *http.Request) domain.RecordID {
	return domain.RecordID(chi.URLParam(r, "id"))
}

func (s *Server) staffLog(r *http.Request, msg string, fields ...zap.Field) {
	sub, _ := SubjectFromContext(r.Context())
	s.log.Info(msg, append(fields, zap.String("subject", sub), zap.String("kind", string(kindFrom(r))))...)
}

func (s *Server) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.applicants.MaxPhotoBytes)
	if limit <= 0 {
		limit = applicants.DefaultMaxPhotoBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		writeBadRequest(w, r, "invalid multipart form", map[string]any{"error": err.Error()})
		return
	}

	in := applicants.SubmitInput{
		Kind:           kindFrom(r),
		FirstNames:     r.FormValue("firstNames"),
		LastNames:      r.FormValue("lastNames"),
		DocumentType:   r.FormValue("documentType"),
		DocumentNumber: r.FormValue("documentNumber"),
		Phone:          r.FormValue("phone"),
		Department:     r.FormValue("department"),
		Email:          r.FormValue("email"),
		Role:           r.FormValue("role"),
	}
	if raw := strings.TrimSpace(r.FormValue("birthDate")); raw != "" {
		bd, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeBadRequest(w, r, "invalid birthDate", map[string]any{"birthDate": raw})
			return
		}
		in.BirthDate = bd
	}

	file, header, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeBadRequest(w, r, "invalid photo upload", nil)
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			writeBadRequest(w, r, "invalid photo upload", nil)
			return
		}
		in.Photo = data
		in.PhotoFilename = header.Filename
	}

	rec, err := s.applicants.Submit(r.Context(), in)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordResponse{Record: recordFromDomain(rec)})
}

func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	states, err := domain.ParseStateFilter(r.URL.Query().Get("state"))
	if err != nil {
		writeBadRequest(w, r, "invalid state filter", map[string]any{"state": r.URL.Query().Get("state")})
		return
	}
	recs, err := s.applicants.List(r.Context(), kindFrom(r), applicants.Query{States: states, Search: r.URL.Query().Get("q")})
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: recordsFromDomain(recs), Count: len(recs)})
}

func (s *Server) PrintQueue(w http.ResponseWriter, r *http.Request) {
	recs, err := s.applicants.PrintQueue(r.Context(), kindFrom(r))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: recordsFromDomain(recs), Count: len(recs)})
}

func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.applicants.Get(r.Context(), kindFrom(r), recordIDFrom(r))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Record: recordFromDomain(rec)})
}

func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	in := applicants.UpdateDetailsInput{
		FirstNames:     optionalStringFromNullable(req.FirstNames),
		LastNames:      optionalStringFromNullable(req.LastNames),
		DocumentType:   optionalStringFromNullable(req.DocumentType),
		DocumentNumber: optionalStringFromNullable(req.DocumentNumber),
		Phone:          optionalStringFromNullable(req.Phone),
		Department:     optionalStringFromNullable(req.Department),
		Email:          optionalStringFromNullable(req.Email),
		Role:           optionalStringFromNullable(req.Role),
	}
	rec, err := s.applicants.UpdateDetails(r.Context(), kindFrom(r), recordIDFrom(r), in)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	s.staffLog(r, "record updated", zap.String("record_id", string(rec.ID)))
	writeJSON(w, http.StatusOK, RecordResponse{Record: recordFromDomain(rec)})
}

func (s *Server) TransitionRecord(w http.ResponseWriter, r *http.Request) {
	op, err := lifecycle.ParseOperation(chi.URLParam(r, "op"))
	if err != nil {
		writeOASError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown operation", map[string]any{"operation": chi.URLParam(r, "op")})
		return
	}
	if op == lifecycle.OpReject {
		writeBadRequest(w, r, "use the reject endpoint", nil)
		return
	}
	res, err := s.lifecycle.Transition(r.Context(), kindFrom(r), recordIDFrom(r), op)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	s.staffLog(r, "transition requested",
		zap.String("record_id", string(res.Record.ID)),
		zap.String("operation", string(op)),
		zap.Bool("changed", res.Changed))
	writeJSON(w, http.StatusOK, transitionFromApp(res))
}

func (s *Server) RejectRecord(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	rej, err := s.lifecycle.Reject(r.Context(), kindFrom(r), recordIDFrom(r), req.Reason)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	s.staffLog(r, "record rejected", zap.String("record_id", string(rej.RecordID)))
	writeJSON(w, http.StatusOK, RejectionResponse{Rejection: rejectionFromDomain(rej)})
}

func (s *Server) CropPhoto(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	in := photos.CropInput{
		Crop:     photo.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height},
		Rotation: req.Rotation,
	}
	rec, err := s.photos.ApplyCrop(r.Context(), kindFrom(r), recordIDFrom(r), in)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Record: recordFromDomain(rec)})
}

func (s *Server) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	op, err := lifecycle.ParseOperation(req.Op)
	if err != nil {
		writeBadRequest(w, r, "unknown operation", map[string]any{"op": req.Op})
		return
	}
	states, err := domain.ParseStateFilter(strings.Join(req.States, ","))
	if err != nil {
		writeBadRequest(w, r, "invalid states", map[string]any{"states": req.States})
		return
	}
	res, err := s.batch.Run(r.Context(), batch.Request{
		Kind:      kindFrom(r),
		Operation: op,
		States:    states,
		Search:    req.Q,
		Notify:    req.Notify,
	})
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	s.staffLog(r, "batch requested",
		zap.String("operation", string(op)),
		zap.Int("affected", res.Affected))
	writeJSON(w, http.StatusOK, batchFromApp(res))
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.applicants.Stats(r.Context(), kindFrom(r))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, statsFromApp(st))
}

func (s *Server) ListRejections(w http.ResponseWriter, r *http.Request) {
	rejs, err := s.applicants.Rejections(r.Context(), kindFrom(r))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	out := RejectionListResponse{Rejections: make([]Rejection, 0, len(rejs))}
	for _, rej := range rejs {
		out.Rejections = append(out.Rejections, rejectionFromDomain(rej))
	}
	writeJSON(w, http.StatusOK, out)
}
