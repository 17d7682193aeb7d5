package watcher

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels for failures caused by the caller's input. Match them with
// errors.Is; the error text is the user-facing message.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrNoMatch    = errors.New("no matching watch items")
	ErrNoResults  = errors.New("no discovery results")
)

type userError struct {
	kind error
	msg  string
}

func (e *userError) Error() string { return e.msg }

func (e *userError) Unwrap() error { return e.kind }

func userErrorf(kind error, format string, args ...any) error {
	return &userError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err was caused by bad input or a missing item
// rather than by an I/O failure.
func IsUserError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrNoMatch, ErrNoResults} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
