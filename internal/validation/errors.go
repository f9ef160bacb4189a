package validation

import "errors"

// Sentinel error kinds for validation.
var (
	ErrTooFewSamples = errors.New("too few samples for correlation")
)
