package devops

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the credential was rejected. Never retried.
	ErrUnauthorized = errors.New("devops: unauthorized")
	// ErrUpstreamFormat means a response could not be understood.
	ErrUpstreamFormat = errors.New("devops: bad upstream response")
	// ErrRejected means the service refused the request (bad query, unknown item).
	ErrRejected = errors.New("devops: request rejected")
	// ErrTransport covers network failures, timeouts, throttling and 5xx.
	ErrTransport = errors.New("devops: transport failure")
	// ErrInvalidQuery is returned before any request when a filter cannot be
	// embedded safely.
	ErrInvalidQuery = errors.New("devops: invalid query")
)

// APIError carries the detail of a failed call. It matches its Kind and the
// underlying cause with errors.Is.
type APIError struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s: status %d: %s", e.Op, e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s: status %d", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Retryable reports whether repeating the same request may succeed.
func (e *APIError) Retryable() bool {
	return errors.Is(e.Kind, ErrTransport)
}

// IsFatal reports whether err must abort a whole report rather than degrade
// one branch of it.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrUpstreamFormat)
}

func kindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	// The service answers an invalid PAT with a 203 sign-in page.
	case status == 203:
		return ErrUnauthorized
	case status == 429 || status >= 500:
		return ErrTransport
	case status >= 400:
		return ErrRejected
	}
	return nil
}

func formatError(op string, err error) *APIError {
	return &APIError{Kind: ErrUpstreamFormat, Op: op, Err: err}
}
