package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/metrics"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
	clockport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/clock"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

// Result is the outcome of a single-record transition.
type Result struct {
	Record domain.ApplicantRecord
	From   domain.State
	// Changed is false when the record already satisfied the operation.
	Changed bool
	// Notified is true when a policy message was delivered.
	Notified bool
	// NotifyErr holds a failed policy delivery. The transition still stands.
	NotifyErr error
}

type Service struct {
	store  recordstore.Store
	seq    sequence.Sequence
	sender notifier.Sender
	clk    clockport.Clock

	log     *zap.Logger
	metrics *metrics.Metrics
	policy  NotificationPolicy

	// blobs is set when rejected records should have their photos purged.
	blobs blobstore.Store

	newRejectionID func() domain.RejectionID
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPolicy(p NotificationPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithPhotoPurge deletes the original and cropped photos after a rejection.
func WithPhotoPurge(blobs blobstore.Store) Option {
	return func(s *Service) { s.blobs = blobs }
}

func WithRejectionIDs(gen func() domain.RejectionID) Option {
	return func(s *Service) {
		if gen != nil {
			s.newRejectionID = gen
		}
	}
}

func NewService(store recordstore.Store, seq sequence.Sequence, sender notifier.Sender, clk clockport.Clock, opts ...Option) *Service {
	s := &Service{
		store:  store,
		seq:    seq,
		sender: sender,
		clk:    clk,
		log:    zap.NewNop(),
		policy: DefaultPolicy(),
		newRejectionID: func() domain.RejectionID {
			return domain.RejectionID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() NotificationPolicy { return s.policy }

// Transition applies a state-writing operation to one record. Approve is
// delegated to Approve; Reject needs a reason and must go through Reject.
func (s *Service) Transition(ctx context.Context, kind domain.RecordKind, id domain.RecordID, op Operation) (Result, error) {
	switch op {
	case OpApprove:
		return s.Approve(ctx, kind, id)
	case OpReject:
		return Result{}, apperr.Validation("reject requires a reason", map[string]any{"operation": string(op)})
	}
	rule, ok := RuleFor(op)
	if !ok {
		return Result{}, apperr.Validation("unknown operation", map[string]any{"operation": string(op)})
	}

	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return Result{}, apperr.FromStore(err)
	}
	to, noop, err := rule.Plan(rec.State)
	if err != nil {
		return Result{}, s.invalid(op, rec)
	}
	if noop {
		return Result{Record: rec, From: rec.State}, nil
	}

	changed, err := s.store.ApplyTransition(ctx, kind, recordstore.TransitionWrite{
		IDs:   []domain.RecordID{id},
		Moves: map[domain.State]domain.State{rec.State: to},
		At:    s.clk.Now(),
	})
	if err != nil {
		s.log.Error("state write failed",
			zap.String("kind", string(kind)),
			zap.String("operation", string(op)),
			zap.String("record_id", string(id)),
			zap.Error(err))
		return Result{}, apperr.FromStore(err)
	}
	if len(changed) == 0 {
		// Another session moved the record between the read and the write.
		return s.resolveLostWrite(ctx, rule, rec)
	}

	res := Result{Record: changed[0], From: rec.State, Changed: true}
	s.metrics.IncTransitions(string(kind), string(op), 1)
	s.log.Info("record transitioned",
		zap.String("kind", string(kind)),
		zap.String("operation", string(op)),
		zap.String("record_id", string(id)),
		zap.String("from", string(rec.State)),
		zap.String("to", string(to)))

	s.notifyAfter(ctx, op, &res)
	return res, nil
}

// Approve moves a PENDIENTE record to APROBADO and assigns its card number.
// A record already approved or printed is returned unchanged and no number is consumed.
func (s *Service) Approve(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (Result, error) {
	rule, _ := RuleFor(OpApprove)

	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return Result{}, apperr.FromStore(err)
	}
	if _, noop, err := rule.Plan(rec.State); err != nil {
		return Result{}, s.invalid(OpApprove, rec)
	} else if noop {
		return Result{Record: rec, From: rec.State}, nil
	}

	n, err := s.seq.Next(ctx, kind)
	if err != nil {
		s.log.Error("card sequence failed", zap.String("kind", string(kind)), zap.Error(err))
		if errors.Is(err, recordstore.ErrUnavailable) {
			return Result{}, apperr.FromStore(err)
		}
		return Result{}, apperr.Unavailable("card number assignment", err)
	}
	card := domain.FormatCardNumber(kind, n)

	approved, err := s.store.ApplyApproval(ctx, kind, id, card, s.clk.Now())
	if errors.Is(err, recordstore.ErrStateConflict) {
		s.log.Warn("card number discarded after concurrent change",
			zap.String("kind", string(kind)),
			zap.String("record_id", string(id)),
			zap.String("card_number", card))
		return s.resolveLostWrite(ctx, rule, rec)
	}
	if err != nil {
		s.log.Error("approval write failed", zap.String("record_id", string(id)), zap.Error(err))
		return Result{}, apperr.FromStore(err)
	}

	res := Result{Record: approved, From: rec.State, Changed: true}
	s.metrics.IncTransitions(string(kind), string(OpApprove), 1)
	s.log.Info("record approved",
		zap.String("kind", string(kind)),
		zap.String("record_id", string(id)),
		zap.String("card_number", card))

	s.notifyAfter(ctx, OpApprove, &res)
	return res, nil
}

// Reject sends the rejected message, then archives and removes the record.
// The reason is stored exactly as given. A delivery failure aborts the
// rejection before anything is written.
func (s *Service) Reject(ctx context.Context, kind domain.RecordKind, id domain.RecordID, reason string) (domain.RejectionRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.RejectionRecord{}, apperr.Validation("invalid reason", map[string]any{"reason": "must be non-empty"})
	}

	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return domain.RejectionRecord{}, apperr.FromStore(err)
	}

	msg := NewMessage(notifier.KindRejected, rec, reason)
	if msg.To == "" {
		s.metrics.IncNotification(string(notifier.KindRejected), "skipped")
		s.log.Warn("rejecting record without email", zap.String("record_id", string(id)))
	} else if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.IncNotification(string(notifier.KindRejected), "failed")
		s.log.Warn("rejection notification failed", zap.String("record_id", string(id)), zap.Error(err))
		return domain.RejectionRecord{}, &apperr.Error{
			Status:  502,
			Code:    apperr.CodeNotificationFailed,
			Message: "the rejection email could not be delivered; the record was not rejected",
			Err:     &notifier.DeliveryError{RecordID: id, Kind: notifier.KindRejected, Err: err},
		}
	} else {
		s.metrics.IncNotification(string(notifier.KindRejected), "sent")
	}

	rj := domain.NewRejection(s.newRejectionID(), rec, reason, s.clk.Now())
	if err := s.store.Reject(ctx, kind, id, rj); err != nil {
		s.log.Error("reject write failed", zap.String("record_id", string(id)), zap.Error(err))
		return domain.RejectionRecord{}, apperr.FromStore(err)
	}
	s.metrics.IncTransitions(string(kind), string(OpReject), 1)
	s.log.Info("record rejected",
		zap.String("kind", string(kind)),
		zap.String("record_id", string(id)),
		zap.String("from", string(rec.State)))

	if s.blobs != nil {
		s.purgePhotos(ctx, rec)
	}
	return rj, nil
}

func (s *Service) resolveLostWrite(ctx context.Context, rule Rule, before domain.ApplicantRecord) (Result, error) {
	cur, err := s.store.Get(ctx, before.Kind, before.ID)
	if err != nil {
		return Result{}, apperr.FromStore(err)
	}
	if _, noop, err := rule.Plan(cur.State); err == nil && noop {
		return Result{Record: cur, From: cur.State}, nil
	}
	return Result{}, s.invalid(rule.Op, cur)
}

func (s *Service) notifyAfter(ctx context.Context, op Operation, res *Result) {
	kind, ok := s.policy.KindFor(op)
	if !ok {
		return
	}
	msg := NewMessage(kind, res.Record, "")
	if msg.To == "" {
		s.metrics.IncNotification(string(kind), "skipped")
		return
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		res.NotifyErr = &notifier.DeliveryError{RecordID: res.Record.ID, Kind: kind, Err: err}
		s.metrics.IncNotification(string(kind), "failed")
		s.log.Warn("notification failed", zap.String("record_id", string(res.Record.ID)), zap.Error(err))
		return
	}
	res.Notified = true
	s.metrics.IncNotification(string(kind), "sent")
}

func (s *Service) purgePhotos(ctx context.Context, rec domain.ApplicantRecord) {
	urls := []string{rec.PhotoURL}
	if rec.PhotoURLFinal != nil {
		urls = append(urls, *rec.PhotoURLFinal)
	}
	for _, u := range urls {
		path, ok := s.blobs.PathFromURL(u)
		if !ok {
			continue
		}
		if err := s.blobs.Delete(ctx, path); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.log.Warn("photo purge failed", zap.String("record_id", string(rec.ID)), zap.String("path", path), zap.Error(err))
		}
	}
}

func (s *Service) invalid(op Operation, rec domain.ApplicantRecord) *apperr.Error {
	te := &TransitionError{Op: op, From: rec.State, ID: rec.ID}
	s.log.Debug("transition refused",
		zap.String("operation", string(op)),
		zap.String("record_id", string(rec.ID)),
		zap.String("state", string(rec.State)))
	return InvalidTransition(te)
}

// InvalidTransition wraps te as a 409 application error.
func InvalidTransition(te *TransitionError) *apperr.Error {
	return &apperr.Error{
		Status:  409,
		Code:    apperr.CodeInvalidTransition,
		Message: te.Error(),
		Details: map[string]any{"operation": string(te.Op), "state": string(te.From)},
		Err:     te,
	}
}
