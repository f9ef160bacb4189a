// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Feature identifies one measured attribute of a student record. The numeric
// value is the attribute's position inside a FeatureVector.
type Feature int

// Features in their fixed order.
const (
	ScorePercentage Feature = iota
	HardQuestionAccuracy
	HintUsagePercentage
	AvgConfidence
	AnswerChangesRate
	TabSwitchesRate
	AvgTimePerQuestion
	ReviewPercentage
	AvgFirstActionLatency
	ClicksPerQuestion
	PerformanceTrend
)

// NumFeatures is the length of every FeatureVector.
const NumFeatures = 11

var featureNames = [NumFeatures]string{
	"score_percentage",
	"hard_question_accuracy",
	"hint_usage_percentage",
	"avg_confidence",
	"answer_changes_rate",
	"tab_switches_rate",
	"avg_time_per_question",
	"review_percentage",
	"avg_first_action_latency",
	"clicks_per_question",
	"performance_trend",
}

var featureByName = func() map[string]Feature {
	m := make(map[string]Feature, NumFeatures)
	for i, name := range featureNames {
		m[name] = Feature(i)
	}
	return m
}()

// String returns the column name of the feature.
func (f Feature) String() string {
	if !f.Valid() {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// Valid reports whether f names one of the known features.
func (f Feature) Valid() bool {
	return f >= 0 && int(f) < NumFeatures
}

// Features returns every feature in vector order.
func Features() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// FeatureNames returns the column names in vector order.
func FeatureNames() []string {
	out := make([]string, NumFeatures)
	copy(out, featureNames[:])
	return out
}

// ParseFeature resolves a column name (case and surrounding space insensitive).
func ParseFeature(name string) (Feature, error) {
	f, ok := featureByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return f, nil
}

// FeatureVector holds one value per feature, indexed by Feature.
type FeatureVector [NumFeatures]float64

// Get returns the value of f.
func (v FeatureVector) Get(f Feature) float64 { return v[f] }

// Set stores x as the value of f.
func (v *FeatureVector) Set(f Feature, x float64) { v[f] = x }

// Map returns the vector keyed by column name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}

// FromMap builds a vector from a name-keyed map. Every feature must be
// present; unknown keys are ignored.
func FromMap(m map[string]float64) (FeatureVector, error) {
	var v FeatureVector
	var missing []string
	for i, name := range featureNames {
		x, ok := m[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		v[i] = x
	}
	if len(missing) > 0 {
		return FeatureVector{}, &InvalidFeatureError{
			Feature: strings.Join(missing, ","),
			Reason:  "missing",
		}
	}
	return v, nil
}

// MarshalJSON encodes the vector as an object keyed by feature name.
func (v FeatureVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON decodes an object keyed by feature name. Missing, null and
// non-numeric values are rejected with an InvalidFeatureError.
func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode feature vector: %w", err)
	}

	var out FeatureVector
	var missing []string
	for i, name := range featureNames {
		msg, ok := raw[name]
		if !ok || string(msg) == "null" {
			missing = append(missing, name)
			continue
		}
		var x float64
		if err := json.Unmarshal(msg, &x); err != nil {
			return &InvalidFeatureError{Feature: name, Reason: "not numeric: " + string(msg)}
		}
		out[i] = x
	}
	if len(missing) > 0 {
		return &InvalidFeatureError{Feature: strings.Join(missing, ","), Reason: "missing"}
	}
	*v = out
	return nil
}
