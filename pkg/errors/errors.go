// Package errors defines the sentinel errors shared across the index and a
// wrapper that attaches the failing operation to them.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrSchema               = errors.New("schema setup failed")
	ErrNotInitialized       = errors.New("index not initialized")
	ErrEmptyCorpus          = errors.New("corpus is empty")
	ErrDegenerateStatistics = errors.New("corpus statistics are degenerate")
	ErrProcessing           = errors.New("document processing failed")
	ErrInvalidInput         = errors.New("invalid input")
)

// Error ties a sentinel kind to the operation that produced it.
type Error struct {
	Kind    error
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, op string, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

func Newf(kind error, op string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Op returns the operation recorded on err, or "" when err carries none.
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
