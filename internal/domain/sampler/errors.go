package sampler

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for sampling.
var (
	ErrNumericalInstability = errors.New("numerical instability")
	ErrNilStatistics        = errors.New("nil reference statistics")
)

// NumericalInstabilityError reports that the regularized correlation matrix
// could not be factored. Raising epsilon is the usual remedy.
type NumericalInstabilityError struct {
	Epsilon float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("correlation matrix is not positive definite after regularization with epsilon=%g", e.Epsilon)
}

func (e *NumericalInstabilityError) Unwrap() error { return ErrNumericalInstability }
