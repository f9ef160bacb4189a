package scoring

import "errors"

// Sentinel error kinds for scoring.
var (
	ErrScoreOutOfRange = errors.New("mastery score outside [0, 100]")
	ErrUnknownFormula  = errors.New("unknown scoring formula")
	ErrInvalidWeights  = errors.New("invalid scoring weights")
)
