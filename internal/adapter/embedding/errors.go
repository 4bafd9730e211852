package embedding

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding: provider returned no vector")

// Error is a failed provider call.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding: %s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding: %s: %s", e.Provider, e.Message)
}

func newStatusError(provider string, status int, body string) *Error {
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{
		Provider:   provider,
		StatusCode: status,
		Message:    body,
		Retryable:  status == http.StatusTooManyRequests || status >= 500,
	}
}

// IsRetryable reports whether err is worth retrying. Errors that are not
// provider status errors (timeouts, resets, empty vectors) are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
