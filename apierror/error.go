// Package apierror carries the HTTP status of a failed provider request
// alongside the message the remote service returned.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxText limits how much of a response body is kept as the error message.
const maxText = 256

// Error is the type of error returned by a network provider. It contains an
// HTTP status code so that callers can tell a missing document from a failing
// service.
type Error struct {
	err    error
	status int
}

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// FromResponse creates an error from the status and body of a response. Long
// bodies, such as HTML error pages, are truncated.
func FromResponse(status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	if len(text) > maxText {
		text = text[:maxText] + "..."
	}
	if text != "" {
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return ""
	}
	// If there is only status, then return status text
	if text := http.StatusText(e.status); text != "" {
		return fmt.Sprintf("%d %s", e.status, text)
	}
	return fmt.Sprintf("%d", e.status)
}

func (e *Error) Status() int {
	return e.status
}

// Temporary reports whether the status indicates a condition that may clear
// up if the request is repeated: throttling or a server side failure.
func (e *Error) Temporary() bool {
	return e.status == http.StatusTooManyRequests ||
		e.status == http.StatusRequestTimeout ||
		e.status >= http.StatusInternalServerError
}

func (e *Error) Text() string {
	parts := make([]string, 0, 5)
	if e.status != 0 {
		parts = append(parts, fmt.Sprintf("%d", e.status))
		text := http.StatusText(e.status)
		if text != "" {
			parts = append(parts, " ")
			parts = append(parts, text)
		}
	}
	if e.err != nil {
		if len(parts) != 0 {
			parts = append(parts, ": ")
		}
		parts = append(parts, e.err.Error())
	}

	return strings.Join(parts, "")
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusOf returns the HTTP status carried by err, or 0 if there is none.
func StatusOf(err error) int {
	var apierr *Error
	if errors.As(err, &apierr) {
		return apierr.Status()
	}
	return 0
}
