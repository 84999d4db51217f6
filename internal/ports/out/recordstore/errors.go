package recordstore

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist in the active collection.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateDocument indicates another active record of the same kind already
	// uses the document number.
	ErrDuplicateDocument = errors.New("duplicate document number")

	// ErrStateConflict indicates a conditional write found the record in a state other
	// than the one the caller planned from. Nothing was written.
	ErrStateConflict = errors.New("record state changed concurrently")

	// ErrUnavailable indicates the backing store could not be reached. Nothing was written.
	ErrUnavailable = errors.New("record store unavailable")
)
