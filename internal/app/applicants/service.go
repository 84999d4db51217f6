// Package applicants covers intake, staff edits and the query side of card
// applications. State changes live in the lifecycle package.
package applicants

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/photo"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/metrics"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
	clockport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/clock"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

// DefaultMaxPhotoBytes bounds an uploaded original.
const DefaultMaxPhotoBytes = 5 << 20

type Service struct {
	store  recordstore.Store
	blobs  blobstore.Store
	sender notifier.Sender
	clk    clockport.Clock

	log     *zap.Logger
	metrics *metrics.Metrics

	newRecordID func() domain.RecordID

	// MaxPhotoBytes bounds the uploaded original.
	MaxPhotoBytes int
}

func NewService(store recordstore.Store, blobs blobstore.Store, sender notifier.Sender, clk clockport.Clock, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		blobs:   blobs,
		sender:  sender,
		clk:     clk,
		log:     log,
		metrics: m,
		newRecordID: func() domain.RecordID {
			return domain.RecordID(uuid.NewString())
		},
		MaxPhotoBytes: DefaultMaxPhotoBytes,
	}
}

// Submit validates an application, stores the original photo and inserts the
// record at PENDIENTE. The confirmation message is best-effort.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.ApplicantRecord, error) {
	if !in.Kind.Valid() {
		return domain.ApplicantRecord{}, apperr.Validation("invalid kind", map[string]any{"kind": string(in.Kind)})
	}
	rec, err := s.validateSubmission(in)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}

	now := s.clk.Now()
	name := photo.OriginalName(in.Kind, rec.DocumentNumber, in.PhotoFilename, now)
	info, _ := photo.Probe(in.Photo)
	url, err := s.blobs.Upload(ctx, name, in.Photo, info.ContentType)
	if err != nil {
		s.log.Error("upload original photo failed", zap.String("path", name), zap.Error(err))
		return domain.ApplicantRecord{}, apperr.Unavailable("photo upload", err)
	}

	rec.ID = s.newRecordID()
	rec.PhotoURL = url
	rec.State = domain.StatePending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := s.store.Insert(ctx, rec); err != nil {
		if derr := s.blobs.Delete(ctx, name); derr != nil {
			s.log.Warn("orphaned original photo", zap.String("path", name), zap.Error(derr))
		}
		if !errors.Is(err, recordstore.ErrDuplicateDocument) {
			s.log.Error("insert application failed", zap.Error(err))
		}
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}
	s.log.Info("application submitted",
		zap.String("kind", string(rec.Kind)),
		zap.String("record_id", string(rec.ID)))

	s.confirm(ctx, rec)
	return rec, nil
}

func (s *Service) validateSubmission(in SubmitInput) (domain.ApplicantRecord, error) {
	details := map[string]any{}
	rec := domain.ApplicantRecord{
		Kind:       in.Kind,
		FirstNames: requireText(details, "firstNames", in.FirstNames),
		LastNames:  requireText(details, "lastNames", in.LastNames),
		Phone:      requireText(details, "phone", in.Phone),
		Department: requireText(details, "department", in.Department),
	}

	docType, ok := domain.ParseDocumentType(in.DocumentType)
	if !ok {
		details["documentType"] = "must be DPI or PASAPORTE"
	} else {
		rec.DocumentType = docType
		doc, err := validateDocument(docType, in.DocumentNumber)
		if err != nil {
			details["documentNumber"] = err.Error()
		}
		rec.DocumentNumber = doc
	}

	if in.BirthDate.IsZero() {
		details["birthDate"] = "is required"
	} else if in.BirthDate.After(s.clk.Now()) {
		details["birthDate"] = "cannot be in the future"
	}
	rec.BirthDate = in.BirthDate

	email := strings.TrimSpace(in.Email)
	switch {
	case email == "" && in.Kind == domain.KindParking:
		details["email"] = "is required for parking applications"
	case email != "":
		if err := validateEmail(email); err != nil {
			details["email"] = err.Error()
		} else {
			rec.Email = &email
		}
	}

	role, err := resolveRole(in.Kind, in.Role)
	if err != nil {
		details["role"] = err.Error()
	}
	rec.Role = role

	switch {
	case len(in.Photo) == 0:
		details["photo"] = "is required"
	case s.MaxPhotoBytes > 0 && len(in.Photo) > s.MaxPhotoBytes:
		details["photo"] = "exceeds the upload size limit"
	default:
		switch _, err := photo.Probe(in.Photo); {
		case errors.Is(err, photo.ErrImageTooLarge):
			details["photo"] = "exceeds the maximum pixel dimensions"
		case err != nil:
			details["photo"] = "must be an image"
		}
	}

	if len(details) > 0 {
		return domain.ApplicantRecord{}, apperr.Validation("invalid application", details)
	}
	return rec, nil
}

func (s *Service) confirm(ctx context.Context, rec domain.ApplicantRecord) {
	kind := string(notifier.KindConfirmation)
	msg := lifecycle.NewMessage(notifier.KindConfirmation, rec, "")
	if msg.To == "" {
		s.metrics.IncNotification(kind, "skipped")
		return
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.IncNotification(kind, "failed")
		s.log.Warn("confirmation notification failed", zap.String("record_id", string(rec.ID)), zap.Error(err))
		return
	}
	s.metrics.IncNotification(kind, "sent")
}

func (s *Service) Get(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error) {
	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}
	return rec, nil
}

// List returns records newest first, narrowed by the text search.
func (s *Service) List(ctx context.Context, kind domain.RecordKind, q Query) ([]domain.ApplicantRecord, error) {
	recs, err := s.store.Find(ctx, kind, recordstore.Filter{States: q.States}, recordstore.OrderNewestFirst)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return filterSearch(recs, q.Search), nil
}

// PrintQueue lists the EN_COLA bucket in print layout order.
func (s *Service) PrintQueue(ctx context.Context, kind domain.RecordKind) ([]domain.ApplicantRecord, error) {
	recs, err := s.store.Find(ctx, kind, recordstore.Filter{States: domain.QueueStates()}, recordstore.OrderLastName)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return recs, nil
}

func (s *Service) Stats(ctx context.Context, kind domain.RecordKind) (Stats, error) {
	counts, err := s.store.CountByState(ctx, kind)
	if err != nil {
		return Stats{}, apperr.FromStore(err)
	}
	return Stats{Kind: kind, Counts: counts, InQueue: counts.InQueue(), Total: counts.Total()}, nil
}

func (s *Service) Rejections(ctx context.Context, kind domain.RecordKind) ([]domain.RejectionRecord, error) {
	out, err := s.store.ListRejections(ctx, kind)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

// UpdateDetails applies a staff edit. The lifecycle state is not editable here.
func (s *Service) UpdateDetails(ctx context.Context, kind domain.RecordKind, id domain.RecordID, in UpdateDetailsInput) (domain.ApplicantRecord, error) {
	current, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}

	details := map[string]any{}
	var p recordstore.DetailsPatch

	text := func(field string, o Optional[string]) *string {
		if !o.IsSpecified() {
			return nil
		}
		if o.IsNull() {
			details[field] = "cannot be null"
			return nil
		}
		v := domain.NormalizeHumanName(o.Value())
		if v == "" {
			details[field] = "must be non-empty"
			return nil
		}
		return &v
	}
	p.FirstNames = text("firstNames", in.FirstNames)
	p.LastNames = text("lastNames", in.LastNames)
	p.Phone = text("phone", in.Phone)
	p.Department = text("department", in.Department)

	docType := current.DocumentType
	if raw := text("documentType", in.DocumentType); raw != nil {
		if dt, ok := domain.ParseDocumentType(*raw); ok {
			docType = dt
			p.DocumentType = &dt
		} else {
			details["documentType"] = "must be DPI or PASAPORTE"
		}
	}
	if in.DocumentNumber.IsSpecified() || p.DocumentType != nil {
		raw := current.DocumentNumber
		if in.DocumentNumber.IsSpecified() {
			if in.DocumentNumber.IsNull() {
				details["documentNumber"] = "cannot be null"
			}
			raw = in.DocumentNumber.Value()
		}
		if doc, err := validateDocument(docType, raw); err != nil {
			details["documentNumber"] = err.Error()
		} else {
			p.DocumentNumber = &doc
		}
	}

	if in.Email.IsSpecified() {
		email := strings.TrimSpace(in.Email.Value())
		switch {
		case in.Email.IsNull() || email == "":
			if kind == domain.KindParking {
				details["email"] = "is required for parking records"
			} else {
				p.ClearEmail = true
			}
		default:
			if err := validateEmail(email); err != nil {
				details["email"] = err.Error()
			} else {
				p.Email = &email
			}
		}
	}

	if in.Role.IsSpecified() {
		if in.Role.IsNull() || !kind.HasRole() {
			details["role"] = "cannot be changed for this record"
		} else if r, ok := domain.ParseRole(in.Role.Value()); ok {
			p.Role = &r
		} else {
			details["role"] = "unknown role"
		}
	}

	if len(details) > 0 {
		return domain.ApplicantRecord{}, apperr.Validation("invalid update", details)
	}

	now := s.clk.Now()
	p.UpdatedAt = &now
	updated, err := s.store.UpdateDetails(ctx, kind, id, p)
	if err != nil {
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}
	return updated, nil
}

func filterSearch(recs []domain.ApplicantRecord, q string) []domain.ApplicantRecord {
	if strings.TrimSpace(q) == "" {
		return recs
	}
	out := recs[:0]
	for _, r := range recs {
		if r.MatchesSearch(q) {
			out = append(out, r)
		}
	}
	return out
}
