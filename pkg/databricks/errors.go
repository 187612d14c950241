package databricks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMethod is returned for HTTP methods outside
	// GET/POST/PUT/DELETE. The request is rejected before any network
	// call is made and is never retried.
	ErrInvalidMethod = errors.New("unsupported HTTP method")

	// ErrNetwork is the sentinel wrapped into transport-level failures
	// (timeouts, connection errors). These are retried with backoff.
	ErrNetwork = errors.New("network error")
)

// RateLimitedError reports an HTTP 429 response from the workspace.
// Rate limits are retried with backoff; if attempts are exhausted the
// RateLimitedError surfaces as the cause of a [RequestError].
type RateLimitedError struct {
	RetryAfter int // Seconds from the Retry-After header, 0 if absent
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code is a machine-readable error category carried on [RequestError].
type Code string

// Error codes for the failure categories a request can end in.
const (
	CodeRequestFailed Code = "REQUEST_FAILED"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeNetworkError  Code = "NETWORK_ERROR"
	CodeDecodeError   Code = "DECODE_ERROR"
)

// RequestError is the uniform terminal failure for API requests.
// It carries the caller-supplied label, the endpoint, the HTTP status
// (0 for pre-response failures), and the underlying cause.
type RequestError struct {
	Code     Code
	Label    string // Caller-supplied error label (e.g. "failed to retrieve clusters")
	Endpoint string
	Status   int    // HTTP status code, 0 if the request never got a response
	Body     string // Response body snippet for non-2xx statuses
	Cause    error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: %s: status %d: %s", e.Label, e.Endpoint, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s: status %d", e.Label, e.Endpoint, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Label, e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Label, e.Endpoint)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RequestError) Unwrap() error { return e.Cause }
