package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse means the provider answered but produced no text.
var ErrEmptyResponse = errors.New("LLM returned an empty response")

// UpstreamError is a failed call to the provider. StatusCode is the HTTP
// status when the provider answered, 0 when it could not be reached.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unreachable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
