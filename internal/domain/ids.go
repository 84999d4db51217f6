package domain

// RecordID is the opaque identifier of an applicant record. It is assigned at
// creation and never changes.
type RecordID string

// RejectionID identifies an entry in the rejection archive.
type RejectionID string

// SubjectID is the authenticated staff subject extracted from token claims ("sub").
type SubjectID string
