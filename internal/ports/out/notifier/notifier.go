package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Kind selects the message template.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReady        Kind = "ready"
	KindRejected     Kind = "rejected"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("notification has no recipient")

// TemplateData is the data available to every template.
type TemplateData struct {
	Name           string
	DocumentNumber string
	Phone          string
	Email          string
	CardNumber     string
	Reason         string
}

// Message is one templated notification for one applicant.
type Message struct {
	Kind       Kind
	RecordKind domain.RecordKind
	RecordID   domain.RecordID
	To         string
	Data       TemplateData
}

// Sender delivers a message. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a failed delivery for one record.
type DeliveryError struct {
	RecordID domain.RecordID
	Kind     Kind
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s notification for record %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
