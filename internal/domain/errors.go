package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components. Callers match them with
// errors.Is so wrapped variants carry detail without breaking checks.
var (
	// ErrInvalidConfiguration covers rejected settings such as a chunk
	// size that does not exceed its overlap, or an unknown variant name.
	// Bad settings are rejected outright, never clamped.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrIndexUnavailable means the vector index artifacts are missing
	// or unreadable. Semantic search cannot be served.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexMetadataMismatch means the index and its metadata disagree
	// (entry count, format version, content hash, or provider identity).
	// Serving from inconsistent artifacts is never allowed.
	ErrIndexMetadataMismatch = errors.New("index metadata mismatch")
)

// ProviderError is returned by embedding providers. Transient failures
// (rate limits, 5xx, transport errors) are retried by the central retry
// policy; everything else is permanent.
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
	Transient  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider %s: HTTP %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("embedding provider %s: %s", e.Provider, e.Detail)
}

// IsTransient reports whether err is a provider error worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// GenerationError is returned when answer synthesis fails. It carries the
// provider's status and body verbatim and is never retried.
type GenerationError struct {
	Provider   string
	Model      string
	StatusCode int
	Detail     string
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation failed (%s/%s): HTTP %d: %s", e.Provider, e.Model, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("generation failed (%s/%s): %s", e.Provider, e.Model, e.Detail)
}
