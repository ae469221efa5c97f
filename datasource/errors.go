package datasource

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when a provider is called without a configured key
	ErrMissingAPIKey = errors.New("api key not configured")

	// ErrMalformedPayload is returned when a consumed provider field is missing or invalid
	ErrMalformedPayload = errors.New("malformed provider payload")
)

// APIError represents a non-success HTTP status returned by a provider
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
}

// Malformed wraps ErrMalformedPayload with the offending field.
func Malformed(field string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, field)
}
