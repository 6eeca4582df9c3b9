package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrWrongLocale is returned when an empty locale is set.
	ErrWrongLocale = errors.New("wrong locale format")
	// ErrNoKeyProvided is returned when an empty header name or auth token is set or removed.
	ErrNoKeyProvided = errors.New("no key provided")
	// ErrKeyNotFound is returned when a header which is not present is removed.
	ErrKeyNotFound = errors.New("key not found")
)

// HTTPStatusError is returned when the exchange succeeded but the status code is not 2xx.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf(`request %s "%s" failed: %d %s`, e.Method, e.URL, e.StatusCode, e.StatusText)
}

// RequestTimeoutError is returned when the configured timeout elapsed before the response was received.
type RequestTimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf(`request %s "%s" failed: timeout after %s`, e.Method, e.URL, e.Timeout)
}

func (e *RequestTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// RequestAbortError is returned when the request was canceled by Fetch.Cancel or by the parent context.
type RequestAbortError struct {
	Method string
	URL    string
	// Cause is the cancellation cause, context.Canceled for Fetch.Cancel.
	Cause error
}

func (e *RequestAbortError) Error() string {
	if e.Cause == nil || errors.Is(e.Cause, context.Canceled) {
		return fmt.Sprintf(`request %s "%s" failed: aborted`, e.Method, e.URL)
	}
	return fmt.Sprintf(`request %s "%s" failed: aborted: %s`, e.Method, e.URL, e.Cause)
}

func (e *RequestAbortError) Unwrap() []error {
	if e.Cause == nil || errors.Is(e.Cause, context.Canceled) {
		return []error{context.Canceled}
	}
	return []error{context.Canceled, e.Cause}
}

// RequestInitializationError is returned when the transport failed for a reason other than cancellation.
type RequestInitializationError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestInitializationError) Error() string {
	prefix := fmt.Sprintf(`request %s "%s"`, e.Method, e.URL)
	if msg := e.Err.Error(); strings.HasPrefix(msg, prefix) {
		// The sender already describes the request
		return msg
	}
	return fmt.Sprintf(`%s failed: %s`, prefix, e.Err)
}

func (e *RequestInitializationError) Unwrap() error {
	return e.Err
}
