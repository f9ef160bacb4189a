package model

import (
	"fmt"
	"strings"
)

// MasteryLevel is the four-bucket ordinal classification of a mastery score.
type MasteryLevel int

// Mastery levels in ascending order.
const (
	AtRisk MasteryLevel = iota
	Developing
	Proficient
	Advanced
)

// NumLevels is the number of mastery levels.
const NumLevels = 4

var levelNames = [NumLevels]string{"at_risk", "developing", "proficient", "advanced"}

// String returns the level name used in datasets and API responses.
func (l MasteryLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the four levels.
func (l MasteryLevel) Valid() bool {
	return l >= AtRisk && l <= Advanced
}

// Levels returns every level in ascending order.
func Levels() []MasteryLevel {
	return []MasteryLevel{AtRisk, Developing, Proficient, Advanced}
}

// LevelNames returns the level names in ascending order.
func LevelNames() []string {
	out := make([]string, NumLevels)
	copy(out, levelNames[:])
	return out
}

// ParseLevel resolves a level by name.
func ParseLevel(name string) (MasteryLevel, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, ln := range levelNames {
		if ln == n {
			return MasteryLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// StudentProfile is a feature vector with its identifier, mastery score and
// mastery level. Profiles are built once by the assembler and not mutated.
type StudentProfile struct {
	ID       string
	Features FeatureVector
	Score    float64
	Level    MasteryLevel
}
