package reference

import (
	"errors"
	"fmt"

	"github.com/okian/xscaffold/internal/domain/model"
)

// Sentinel error kinds for reference extraction.
var (
	ErrInsufficientData  = errors.New("insufficient reference data")
	ErrDegenerateFeature = errors.New("degenerate feature")
	ErrInvalidStatistics = errors.New("invalid reference statistics")
)

// DegenerateFeatureError reports a feature with zero variance in the
// reference data.
type DegenerateFeatureError struct {
	Feature model.Feature
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("degenerate feature %s: zero variance in reference data", e.Feature)
}

func (e *DegenerateFeatureError) Unwrap() error { return ErrDegenerateFeature }
