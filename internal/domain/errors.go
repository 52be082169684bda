package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the generation API key is missing.
	ErrNotConfigured = errors.New("generation api not configured")
	// ErrNoData means there is no cached review set for the session.
	ErrNoData        = errors.New("no review data available")
	ErrEmptyQuestion = errors.New("question cannot be empty")
	ErrNoAnswer      = errors.New("no answer could be generated")
	// ErrMalformedResponse marks a 2xx reply that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// ParseError reports an unreadable or malformed upload.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return "parse spreadsheet: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ExternalAPIError is a failed call to one of the cloud services.
// StatusCode is 0 when no HTTP response was received.
type ExternalAPIError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalAPIError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	default:
		return e.Service + ": request failed"
	}
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }
