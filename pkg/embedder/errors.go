package embedder

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyResponse indicates the provider returned no embeddings.
	ErrEmptyResponse = errors.New("the embedding provider returned an empty response")
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("embedder is closed")
)

// StatusError is an embedding request that failed with an HTTP status code.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding request failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for StatusError.
// This allows errors.Is(err, &StatusError{}) to work with wrapped errors.
func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// Retryable reports whether the status code indicates a transient failure.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
