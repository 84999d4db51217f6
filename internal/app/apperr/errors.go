// Package apperr is the application-layer error shared by the card services.
// Transport adapters map it onto a response.
package apperr

import (
	"errors"
	"fmt"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

const (
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeDuplicateDocument  = "DUPLICATE_DOCUMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeImageDecode        = "IMAGE_DECODE_ERROR"
	CodeCropOutOfBounds    = "CROP_OUT_OF_BOUNDS"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeNotificationFailed = "NOTIFICATION_FAILED"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Validation(message string, details map[string]any) *Error {
	return &Error{Status: 422, Code: CodeValidation, Message: message, Details: details}
}

func NotFound(what string) *Error {
	return &Error{Status: 404, Code: CodeNotFound, Message: what + " not found", Err: recordstore.ErrNotFound}
}

// FromStore maps record store sentinels onto application errors. Other errors
// are returned unchanged.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return &Error{Status: 404, Code: CodeNotFound, Message: "record not found", Err: err}
	case errors.Is(err, recordstore.ErrDuplicateDocument):
		return &Error{
			Status:  409,
			Code:    CodeDuplicateDocument,
			Message: "a record with this document number already exists",
			Err:     err,
		}
	case errors.Is(err, recordstore.ErrUnavailable):
		return &Error{Status: 503, Code: CodeStoreUnavailable, Message: "record store unavailable", Err: err}
	}
	return err
}

// Unavailable wraps an infrastructure failure that aborted the operation.
func Unavailable(op string, err error) *Error {
	return &Error{
		Status:  503,
		Code:    CodeStoreUnavailable,
		Message: fmt.Sprintf("%s failed: backing service unavailable", op),
		Err:     err,
	}
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
