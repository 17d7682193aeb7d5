package fetch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	KindInvalidURL             Kind = "invalid_url"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindTooLarge               Kind = "too_large"
	KindTimeout                Kind = "timeout"
	KindNetwork                Kind = "network"
	KindHTTPStatus             Kind = "http_status"
)

// Error is returned by every failing Fetcher call.
type Error struct {
	Kind Kind
	URL  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, rawURL, msg string, cause error) *Error {
	return &Error{Kind: kind, URL: rawURL, Msg: msg, Err: cause}
}

// KindOf returns the Kind carried by err, or "" if err is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a fetch error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsValidation reports whether err was raised before any data was received
// from the remote side, or because the response was unacceptable: the
// failures a caller reports as bad input rather than as an outage.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidURL, KindUnsupportedContentType, KindTooLarge:
		return true
	}
	return false
}

func retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	}
	return false
}
