package llm

import "errors"

var (
	// ErrNotConfigured is returned when no API key is set
	ErrNotConfigured = errors.New("llm backend not configured: missing API key")

	// ErrUpstream is returned for any backend failure (network, auth, quota).
	// It is fatal for the request that triggered it.
	ErrUpstream = errors.New("llm backend error")
)
