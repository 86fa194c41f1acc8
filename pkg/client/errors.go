package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/arxiv-client/pkg/feed"
)

// ErrRetryExhausted wraps the last page error once every attempt has failed.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrorClass represents a classification of page fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassEmptyPage represents a later page that decoded to nothing.
	ErrorClassEmptyPage ErrorClass = "empty_page"
)

// TransportError is a failed GET: either no response at all (Err is set)
// or a non-2xx status.
type TransportError struct {
	URL string

	// Attempt is the zero-based try index that failed.
	Attempt int

	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (attempt %d): %v", e.URL, e.Attempt, e.Err)
	}
	return fmt.Sprintf("fetch %s (attempt %d): HTTP %d %s",
		e.URL, e.Attempt, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Class returns the error classification.
func (e *TransportError) Class() ErrorClass {
	switch {
	case e.Err != nil:
		return ErrorClassNetwork
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case e.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// EmptyPageError is a page after the first that decoded to zero results.
// The API occasionally serves these mid-walk; a retry usually succeeds.
type EmptyPageError struct {
	URL     string
	Attempt int

	// Page is the decoded payload, kept for diagnosis.
	Page *feed.Page
}

// Error implements the error interface.
func (e *EmptyPageError) Error() string {
	return fmt.Sprintf("fetch %s (attempt %d): unexpected empty page", e.URL, e.Attempt)
}

// ConfigurationError rejects invalid caller input before any request.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// classifyError returns the class of a retryable page error, or "" for
// anything else.
func classifyError(err error) ErrorClass {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Class()
	}
	var emptyErr *EmptyPageError
	if errors.As(err, &emptyErr) {
		return ErrorClassEmptyPage
	}
	return ""
}

// shouldRetry reports whether a page error is worth another attempt. Every
// transport failure is, including 4xx: the API answers transient overload
// with assorted statuses.
func shouldRetry(err error) bool {
	return classifyError(err) != ""
}
