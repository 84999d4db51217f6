package applicants

import (
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// SubmitInput is a public application for a card. Photo holds the raw upload.
type SubmitInput struct {
	Kind           domain.RecordKind
	FirstNames     string
	LastNames      string
	DocumentType   string
	DocumentNumber string
	BirthDate      time.Time
	Phone          string
	Department     string
	Email          string
	// Role is only accepted for membership; empty defaults to ATHLETE.
	Role string

	Photo         []byte
	PhotoFilename string
}

// UpdateDetailsInput is a staff edit. Only Email may be null.
type UpdateDetailsInput struct {
	FirstNames     Optional[string]
	LastNames      Optional[string]
	DocumentType   Optional[string]
	DocumentNumber Optional[string]
	Phone          Optional[string]
	Department     Optional[string]
	Email          Optional[string]
	Role           Optional[string]
}

// Query lists records. Empty States matches every state.
type Query struct {
	States domain.StateSet
	Search string
}

// Stats are the dashboard totals for one kind.
type Stats struct {
	Kind    domain.RecordKind
	Counts  domain.StateCounts
	InQueue int
	Total   int
}
