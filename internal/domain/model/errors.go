package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidFeature = errors.New("invalid feature")
	ErrUnknownFeature = errors.New("unknown feature")
	ErrUnknownLevel   = errors.New("unknown mastery level")
)

// InvalidFeatureError reports a feature value that cannot be scored: missing,
// non-numeric, not finite, or outside its nominal domain.
type InvalidFeatureError struct {
	Feature string
	Value   float64
	Reason  string
}

func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("invalid feature %s: %s", e.Feature, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidFeature).
func (e *InvalidFeatureError) Unwrap() error { return ErrInvalidFeature }
