package llms

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyResponse = errors.New("llms: empty response from model")
	ErrSystemMessage = errors.New("llms: system message must be the first message in the conversation")
	ErrNoMessages    = errors.New("llms: no messages provided")
)

// ProviderError reports a failed request to a remote model backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the status code marks a failure worth retrying.
func (e *ProviderError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= http.StatusInternalServerError && e.StatusCode < 600:
		return true
	default:
		return false
	}
}

// NewProviderError wraps err with the provider name and HTTP status.
func NewProviderError(provider string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Err: err}
}
