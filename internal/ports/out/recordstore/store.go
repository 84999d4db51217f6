package recordstore

import (
	"context"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Filter restricts a query to a state set and/or explicit IDs. Zero value matches all.
type Filter struct {
	States domain.StateSet
	IDs    []domain.RecordID
}

// Order selects result ordering for Find.
type Order int

const (
	// OrderNewestFirst sorts by CreatedAt descending (dashboard default).
	OrderNewestFirst Order = iota
	// OrderLastName sorts by LastNames, FirstNames ascending (print layout).
	OrderLastName
)

// DetailsPatch updates staff-editable fields. Nil pointers leave a field unchanged.
// ClearEmail removes the email; Role is ignored for kinds without a role.
type DetailsPatch struct {
	FirstNames     *string
	LastNames      *string
	DocumentType   *domain.DocumentType
	DocumentNumber *string
	Phone          *string
	Department     *string
	Email          *string
	ClearEmail     bool
	Role           *domain.Role
	PhotoURL       *string
	PhotoURLFinal  *string
	UpdatedAt      *time.Time
}

// TransitionWrite is a conditional bulk state write. For every record in IDs whose
// current state is a key of Moves, the state becomes Moves[state]. Records in any
// other state are left untouched.
type TransitionWrite struct {
	IDs   []domain.RecordID
	Moves map[domain.State]domain.State
	At    time.Time
}

// FromStates lists the keys of Moves in lifecycle order.
func (w TransitionWrite) FromStates() domain.StateSet {
	out := make([]domain.State, 0, len(w.Moves))
	for from := range w.Moves {
		out = append(out, from)
	}
	return domain.NewStateSet(out...)
}

// Store provides typed access to the membership and parking collections and to
// the rejection archive.
//
// Every mutating method is atomic: ApplyTransition is a single conditional
// statement, Reject moves the record inside one transaction.
type Store interface {
	Insert(ctx context.Context, rec domain.ApplicantRecord) error
	Get(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error)
	Find(ctx context.Context, kind domain.RecordKind, f Filter, order Order) ([]domain.ApplicantRecord, error)
	Count(ctx context.Context, kind domain.RecordKind, f Filter) (int, error)
	CountByState(ctx context.Context, kind domain.RecordKind) (domain.StateCounts, error)

	UpdateDetails(ctx context.Context, kind domain.RecordKind, id domain.RecordID, p DetailsPatch) (domain.ApplicantRecord, error)

	// ApplyTransition returns the records it actually changed, in their new state.
	ApplyTransition(ctx context.Context, kind domain.RecordKind, w TransitionWrite) ([]domain.ApplicantRecord, error)

	// ApplyApproval moves a PENDIENTE record to APROBADO and stores the card number.
	// It returns ErrStateConflict when the record is no longer PENDIENTE.
	ApplyApproval(ctx context.Context, kind domain.RecordKind, id domain.RecordID, cardNumber string, at time.Time) (domain.ApplicantRecord, error)

	// Reject inserts the archive snapshot and deletes the active record atomically.
	Reject(ctx context.Context, kind domain.RecordKind, id domain.RecordID, rj domain.RejectionRecord) error
	ListRejections(ctx context.Context, origin domain.RecordKind) ([]domain.RejectionRecord, error)

	Delete(ctx context.Context, kind domain.RecordKind, id domain.RecordID) error
}
