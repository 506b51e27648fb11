package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dacapoday/sqlet"
)

// LineError reports an input line that names no known command or statement.
type LineError struct {
	Err  error // sqlet.ErrUnrecognizedCommand or sqlet.ErrUnrecognizedStatement
	Line string
}

func (e *LineError) Error() string {
	if e.Err == sqlet.ErrUnrecognizedCommand {
		return fmt.Sprintf("Unrecognized command '%s'", e.Line)
	}
	return fmt.Sprintf("Unrecognized keyword at start of '%s'.", e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Message returns the text printed for err.
func Message(err error) string {
	var verr *sqlet.ValidationError
	var lerr *LineError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &lerr):
		return lerr.Error()
	case errors.Is(err, sqlet.ErrDuplicateKey):
		return "Error: Duplicate key."
	case errors.Is(err, sqlet.ErrTableFull):
		return "Error: Table full."
	}
	return "Error: " + strings.TrimSuffix(err.Error(), ".") + "."
}
