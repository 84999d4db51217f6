package lifecycle

import (
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// NewMessage builds the notification for rec. Reason is only used by rejected messages.
func NewMessage(kind notifier.Kind, rec domain.ApplicantRecord, reason string) notifier.Message {
	data := notifier.TemplateData{
		Name:           rec.FullName(),
		DocumentNumber: rec.DocumentNumber,
		Phone:          rec.Phone,
		Email:          rec.EmailAddress(),
		Reason:         reason,
	}
	if rec.CardNumber != nil {
		data.CardNumber = *rec.CardNumber
	}
	return notifier.Message{
		Kind:       kind,
		RecordKind: rec.Kind,
		RecordID:   rec.ID,
		To:         rec.EmailAddress(),
		Data:       data,
	}
}
