// Package batch runs one lifecycle operation across every record matching a
// filter, then fans out the resulting notifications.
package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/metrics"
	clockport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/clock"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

const DefaultConcurrency = 8

// Request selects the records and the operation to apply.
type Request struct {
	Kind      domain.RecordKind
	Operation lifecycle.Operation
	// States narrows the candidates. Empty means every state the operation accepts.
	States domain.StateSet
	// Search is an optional text filter applied after the state filter.
	Search string
	// Notify overrides the notification policy: nil follows the policy,
	// false suppresses messages, true requires the policy to define one.
	Notify *bool
}

// Result summarises a batch run.
type Result struct {
	Operation lifecycle.Operation
	// NoOp is true when nothing matched the filter.
	NoOp bool
	// Matched counts records selected by the filter and search.
	Matched int
	// Affected counts records whose state was written.
	Affected int
	// Skipped counts matched records another session moved before the write.
	Skipped int

	Notified      int
	NotifyFailed  int
	NotifySkipped int

	AffectedIDs []domain.RecordID
	Failures    []*notifier.DeliveryError
}

type Service struct {
	store  recordstore.Store
	sender notifier.Sender
	clk    clockport.Clock

	log         *zap.Logger
	metrics     *metrics.Metrics
	policy      lifecycle.NotificationPolicy
	concurrency int
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

func WithPolicy(p lifecycle.NotificationPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithConcurrency bounds parallel notification sends.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(store recordstore.Store, sender notifier.Sender, clk clockport.Clock, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sender:      sender,
		clk:         clk,
		log:         zap.NewNop(),
		policy:      lifecycle.DefaultPolicy(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run applies req.Operation to every matching record with one conditional
// write. A failed write aborts the run with nothing committed. Notifications
// follow the write and their failures are only counted.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	rule, states, msgKind, notify, err := s.plan(req)
	if err != nil {
		return Result{}, err
	}
	op := string(req.Operation)
	log := s.log.With(zap.String("kind", string(req.Kind)), zap.String("operation", op))

	candidates, err := s.store.Find(ctx, req.Kind, recordstore.Filter{States: states}, recordstore.OrderNewestFirst)
	if err != nil {
		s.metrics.IncBatchRun(op, "failed")
		log.Error("batch selection failed", zap.Error(err))
		return Result{}, apperr.FromStore(err)
	}
	ids := make([]domain.RecordID, 0, len(candidates))
	for _, rec := range candidates {
		if rec.MatchesSearch(req.Search) {
			ids = append(ids, rec.ID)
		}
	}

	res := Result{Operation: req.Operation, Matched: len(ids)}
	if len(ids) == 0 {
		res.NoOp = true
		s.metrics.IncBatchRun(op, "noop")
		log.Info("batch matched no records", zap.String("states", states.String()))
		return res, nil
	}

	changed, err := s.store.ApplyTransition(ctx, req.Kind, recordstore.TransitionWrite{
		IDs:   ids,
		Moves: rule.Restrict(states).Moves,
		At:    s.clk.Now(),
	})
	if err != nil {
		s.metrics.IncBatchRun(op, "failed")
		log.Error("batch state write failed", zap.Int("matched", len(ids)), zap.Error(err))
		return Result{}, apperr.FromStore(err)
	}

	res.Affected = len(changed)
	res.Skipped = res.Matched - res.Affected
	res.AffectedIDs = make([]domain.RecordID, len(changed))
	for i, rec := range changed {
		res.AffectedIDs[i] = rec.ID
	}
	s.metrics.IncBatchRun(op, "applied")
	s.metrics.AddBatchAffected(op, res.Affected)
	s.metrics.IncTransitions(string(req.Kind), op, res.Affected)

	if notify {
		s.fanOut(ctx, msgKind, changed, &res)
	}

	log.Info("batch applied",
		zap.Int("matched", res.Matched),
		zap.Int("affected", res.Affected),
		zap.Int("skipped", res.Skipped),
		zap.Int("notified", res.Notified),
		zap.Int("notify_failed", res.NotifyFailed))
	return res, nil
}

func (s *Service) plan(req Request) (lifecycle.Rule, domain.StateSet, notifier.Kind, bool, error) {
	if !req.Kind.Valid() {
		return lifecycle.Rule{}, nil, "", false, apperr.Validation("invalid kind", map[string]any{"kind": string(req.Kind)})
	}
	if req.Operation == lifecycle.OpApprove || req.Operation == lifecycle.OpReject {
		return lifecycle.Rule{}, nil, "", false, apperr.Validation("operation is not available as a batch", map[string]any{
			"operation": string(req.Operation),
		})
	}
	rule, ok := lifecycle.RuleFor(req.Operation)
	if !ok {
		return lifecycle.Rule{}, nil, "", false, apperr.Validation("unknown operation", map[string]any{"operation": string(req.Operation)})
	}

	states := req.States
	if len(states) == 0 {
		states = rule.Sources()
	} else if !states.SubsetOf(rule.Sources()) {
		return lifecycle.Rule{}, nil, "", false, apperr.Validation("states not accepted by operation", map[string]any{
			"states":  states.Strings(),
			"allowed": rule.Sources().Strings(),
		})
	}

	msgKind, notify := s.policy.KindFor(req.Operation)
	if req.Notify != nil {
		if *req.Notify && !notify {
			return lifecycle.Rule{}, nil, "", false, apperr.Validation("operation sends no notification", map[string]any{
				"operation": string(req.Operation),
			})
		}
		notify = notify && *req.Notify
	}
	return rule, states, msgKind, notify, nil
}

func (s *Service) fanOut(ctx context.Context, kind notifier.Kind, recs []domain.ApplicantRecord, res *Result) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, rec := range recs {
		msg := lifecycle.NewMessage(kind, rec, "")
		if msg.To == "" {
			res.NotifySkipped++
			s.metrics.IncNotification(string(kind), "skipped")
			continue
		}
		g.Go(func() error {
			err := s.sender.Send(ctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.NotifyFailed++
				res.Failures = append(res.Failures, &notifier.DeliveryError{RecordID: msg.RecordID, Kind: kind, Err: err})
				s.metrics.IncNotification(string(kind), "failed")
				s.log.Warn("batch notification failed", zap.String("record_id", string(msg.RecordID)), zap.Error(err))
				return nil
			}
			res.Notified++
			s.metrics.IncNotification(string(kind), "sent")
			return nil
		})
	}
	_ = g.Wait()
}
