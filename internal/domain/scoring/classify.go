package scoring

import (
	"fmt"
	"math"

	"github.com/okian/xscaffold/internal/domain/model"
)

// Lower bounds of each level above at_risk. Intervals are closed below and
// open above, except advanced which includes 100.
const (
	DevelopingFrom = 36
	ProficientFrom = 56
	AdvancedFrom   = 76
)

// Classify maps a mastery score in [0,100] to its level.
func Classify(score float64) (model.MasteryLevel, error) {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return 0, fmt.Errorf("%w: %g", ErrScoreOutOfRange, score)
	}
	switch {
	case score >= AdvancedFrom:
		return model.Advanced, nil
	case score >= ProficientFrom:
		return model.Proficient, nil
	case score >= DevelopingFrom:
		return model.Developing, nil
	default:
		return model.AtRisk, nil
	}
}

// Round rounds a score half away from zero to precision decimal places.
func Round(score float64, precision int) float64 {
	if precision < 0 {
		return score
	}
	p := math.Pow(10, float64(precision))
	r := math.Round(score*p) / p
	if r == 0 {
		return 0
	}
	return r
}
