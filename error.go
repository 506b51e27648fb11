package sqlet

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrDuplicateKey           = errors.New("duplicate key")
	ErrUnrecognizedCommand    = errors.New("unrecognized command")
	ErrUnrecognizedStatement  = errors.New("unrecognized statement")
	ErrIO                     = errors.New("i/o error")
	ErrTableFull              = errors.New("table full")
	ErrCorrupt                = errors.New("corrupt file")
	ErrClosed                 = errors.New("closed")
	ErrInvalidPageSize        = errors.New("invalid page size")
	ErrUnknownMagicCode       = errors.New("unknown magic code")
	ErrUnsupportedFileVersion = errors.New("unsupported file version")
)

// ValidationError reports a rejected input field.
// Message is the text shown to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a *ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
