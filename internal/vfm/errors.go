package vfm

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrNameConflict       = errors.New("name conflict")
	ErrCircularReference  = errors.New("circular reference")
	ErrNoOp               = errors.New("no-op")
	ErrOversizedFile      = errors.New("file too large")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPartialFailure     = errors.New("partial failure")
)

// Error is a failure whose Message can be shown to a user as is.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error {
	return newError(ErrNotFound, "%s not found", what)
}

// Message returns the text to show a user for err: the message of the
// first *Error in its chain, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// partialFailure reports the side effects of an operation that failed
// after its primary write succeeded. It returns nil when errs is empty.
func partialFailure(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return &Error{
		Kind:    ErrPartialFailure,
		Message: fmt.Sprintf("%s completed with %d cleanup error(s): %s", op, len(errs), strings.Join(msgs, "; ")),
		Cause:   errors.Join(errs...),
	}
}

func isPartial(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}
