package domain

import "time"

// RejectionRecord is the archived snapshot of a rejected application. The
// active record is deleted when this is written so the document number can be
// submitted again.
type RejectionRecord struct {
	ID       RejectionID
	RecordID RecordID
	Origin   RecordKind
	Reason   string

	FirstNames     string
	LastNames      string
	DocumentType   DocumentType
	DocumentNumber string
	Email          *string
	Phone          string
	Department     string
	PhotoURL       string

	SubmittedAt time.Time
	RejectedAt  time.Time
}

// NewRejection snapshots the identifying fields of rec. The reason is kept verbatim.
func NewRejection(id RejectionID, rec ApplicantRecord, reason string, at time.Time) RejectionRecord {
	return RejectionRecord{
		ID:             id,
		RecordID:       rec.ID,
		Origin:         rec.Kind,
		Reason:         reason,
		FirstNames:     rec.FirstNames,
		LastNames:      rec.LastNames,
		DocumentType:   rec.DocumentType,
		DocumentNumber: rec.DocumentNumber,
		Email:          cloneStringPtr(rec.Email),
		Phone:          rec.Phone,
		Department:     rec.Department,
		PhotoURL:       rec.PhotoURL,
		SubmittedAt:    rec.CreatedAt,
		RejectedAt:     at,
	}
}
