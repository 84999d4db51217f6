package recordstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

// Store is an in-memory implementation of recordstore.Store.
// It is safe for concurrent use; every method runs under one lock so bulk
// writes are atomic.
type Store struct {
	mu sync.RWMutex

	records    map[domain.RecordKind]map[domain.RecordID]domain.ApplicantRecord
	idByDoc    map[domain.RecordKind]map[string]domain.RecordID
	rejections []domain.RejectionRecord

	// failWith, when set, is returned by every mutating call. Tests use it to
	// simulate an unreachable store.
	failWith error
}

func NewStore() *Store {
	s := &Store{
		records: make(map[domain.RecordKind]map[domain.RecordID]domain.ApplicantRecord),
		idByDoc: make(map[domain.RecordKind]map[string]domain.RecordID),
	}
	for _, k := range domain.Kinds {
		s.records[k] = make(map[domain.RecordID]domain.ApplicantRecord)
		s.idByDoc[k] = make(map[string]domain.RecordID)
	}
	return s
}

// FailWrites makes subsequent writes fail with err. Pass nil to restore.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Insert(ctx context.Context, rec domain.ApplicantRecord) error {
	_ = ctx
	if rec.ID == "" {
		return errors.New("insert: empty record id")
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("insert: invalid record kind %q", rec.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	doc := domain.NormalizeDocumentNumber(rec.DocumentNumber)
	if _, ok := s.idByDoc[rec.Kind][doc]; ok {
		return recordstore.ErrDuplicateDocument
	}
	if _, ok := s.records[rec.Kind][rec.ID]; ok {
		return recordstore.ErrDuplicateDocument
	}
	s.records[rec.Kind][rec.ID] = rec.Clone()
	s.idByDoc[rec.Kind][doc] = rec.ID
	return nil
}

func (s *Store) Get(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[kind][id]
	if !ok {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Find(ctx context.Context, kind domain.RecordKind, f recordstore.Filter, order recordstore.Order) ([]domain.ApplicantRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ApplicantRecord, 0)
	for _, rec := range s.records[kind] {
		if matches(rec, f) {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out, order)
	return out, nil
}

func (s *Store) Count(ctx context.Context, kind domain.RecordKind, f recordstore.Filter) (int, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records[kind] {
		if matches(rec, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountByState(ctx context.Context, kind domain.RecordKind) (domain.StateCounts, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.StateCounts)
	for _, rec := range s.records[kind] {
		out[rec.State]++
	}
	return out, nil
}

func (s *Store) UpdateDetails(ctx context.Context, kind domain.RecordKind, id domain.RecordID, p recordstore.DetailsPatch) (domain.ApplicantRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return domain.ApplicantRecord{}, s.failWith
	}

	rec, ok := s.records[kind][id]
	if !ok {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}
	oldDoc := domain.NormalizeDocumentNumber(rec.DocumentNumber)
	if p.DocumentNumber != nil {
		newDoc := domain.NormalizeDocumentNumber(*p.DocumentNumber)
		if other, taken := s.idByDoc[kind][newDoc]; taken && other != id {
			return domain.ApplicantRecord{}, recordstore.ErrDuplicateDocument
		}
	}

	applyPatch(&rec, p)
	if p.DocumentNumber != nil {
		delete(s.idByDoc[kind], oldDoc)
		s.idByDoc[kind][domain.NormalizeDocumentNumber(rec.DocumentNumber)] = id
	}
	s.records[kind][id] = rec
	return rec.Clone(), nil
}

func (s *Store) ApplyTransition(ctx context.Context, kind domain.RecordKind, w recordstore.TransitionWrite) ([]domain.ApplicantRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	out := make([]domain.ApplicantRecord, 0, len(w.IDs))
	for _, id := range w.IDs {
		rec, ok := s.records[kind][id]
		if !ok {
			continue
		}
		to, ok := w.Moves[rec.State]
		if !ok {
			continue
		}
		rec.State = to
		if !w.At.IsZero() {
			rec.UpdatedAt = w.At
		}
		s.records[kind][id] = rec
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *Store) ApplyApproval(ctx context.Context, kind domain.RecordKind, id domain.RecordID, cardNumber string, at time.Time) (domain.ApplicantRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return domain.ApplicantRecord{}, s.failWith
	}

	rec, ok := s.records[kind][id]
	if !ok {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}
	if rec.State != domain.StatePending {
		return domain.ApplicantRecord{}, recordstore.ErrStateConflict
	}
	rec.State = domain.StateApproved
	rec.CardNumber = &cardNumber
	rec.UpdatedAt = at
	s.records[kind][id] = rec
	return rec.Clone(), nil
}

func (s *Store) Reject(ctx context.Context, kind domain.RecordKind, id domain.RecordID, rj domain.RejectionRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	rec, ok := s.records[kind][id]
	if !ok {
		return recordstore.ErrNotFound
	}
	rj.Origin = kind
	rj.RecordID = id
	s.rejections = append(s.rejections, rj)
	delete(s.records[kind], id)
	delete(s.idByDoc[kind], domain.NormalizeDocumentNumber(rec.DocumentNumber))
	return nil
}

func (s *Store) ListRejections(ctx context.Context, origin domain.RecordKind) ([]domain.RejectionRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RejectionRecord, 0)
	for _, rj := range s.rejections {
		if origin == "" || rj.Origin == origin {
			out = append(out, rj)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RejectedAt.After(out[j].RejectedAt) })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, kind domain.RecordKind, id domain.RecordID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	rec, ok := s.records[kind][id]
	if !ok {
		return recordstore.ErrNotFound
	}
	delete(s.records[kind], id)
	delete(s.idByDoc[kind], domain.NormalizeDocumentNumber(rec.DocumentNumber))
	return nil
}

func matches(rec domain.ApplicantRecord, f recordstore.Filter) bool {
	if !f.States.Matches(rec.State) {
		return false
	}
	if len(f.IDs) == 0 {
		return true
	}
	for _, id := range f.IDs {
		if id == rec.ID {
			return true
		}
	}
	return false
}

func applyPatch(rec *domain.ApplicantRecord, p recordstore.DetailsPatch) {
	if p.FirstNames != nil {
		rec.FirstNames = *p.FirstNames
	}
	if p.LastNames != nil {
		rec.LastNames = *p.LastNames
	}
	if p.DocumentType != nil {
		rec.DocumentType = *p.DocumentType
	}
	if p.DocumentNumber != nil {
		rec.DocumentNumber = *p.DocumentNumber
	}
	if p.Phone != nil {
		rec.Phone = *p.Phone
	}
	if p.Department != nil {
		rec.Department = *p.Department
	}
	if p.ClearEmail {
		rec.Email = nil
	} else if p.Email != nil {
		v := *p.Email
		rec.Email = &v
	}
	if p.Role != nil && rec.Kind.HasRole() {
		v := *p.Role
		rec.Role = &v
	}
	if p.PhotoURL != nil {
		rec.PhotoURL = *p.PhotoURL
	}
	if p.PhotoURLFinal != nil {
		v := *p.PhotoURLFinal
		rec.PhotoURLFinal = &v
	}
	if p.UpdatedAt != nil {
		rec.UpdatedAt = *p.UpdatedAt
	}
}

func sortRecords(rs []domain.ApplicantRecord, order recordstore.Order) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		switch order {
		case recordstore.OrderLastName:
			la, lb := strings.ToLower(a.LastNames), strings.ToLower(b.LastNames)
			if la != lb {
				return la < lb
			}
			fa, fb := strings.ToLower(a.FirstNames), strings.ToLower(b.FirstNames)
			if fa != fb {
				return fa < fb
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
