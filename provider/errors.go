package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound may be returned by a provider instead of a nil item to report
// that it has no such document.
var ErrNotFound = errors.New("document not found")

// UnrecognizedPrefixError is returned when no provider claims a code.
type UnrecognizedPrefixError struct {
	Code     string
	Prefixes []string
}

func (e *UnrecognizedPrefixError) Error() string {
	return fmt.Sprintf("%s does not have a recognised prefix; recognised prefixes are: %s",
		e.Code, strings.Join(e.Prefixes, ", "))
}

// TransientError wraps a failure that may succeed if the fetch is repeated,
// such as a network failure or a server error.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %s", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err, or any error it wraps, is a
// *TransientError.
func IsTransient(err error) bool {
	var terr *TransientError
	return errors.As(err, &terr)
}
