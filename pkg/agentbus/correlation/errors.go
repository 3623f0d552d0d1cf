package correlation

import "errors"

// Sentinel errors.
var (
	// ErrNotConfigured is returned by Instance before Configure succeeds.
	ErrNotConfigured = errors.New("correlation validator not configured")

	// ErrInvalidFormat is returned when the correlation id format does not compile.
	ErrInvalidFormat = errors.New("invalid correlation id format")
)
