// Package constraints holds the valid range and precision of every feature and
// enforces them on synthetic vectors.
package constraints

import (
	"fmt"
	"math"

	"github.com/okian/xscaffold/internal/domain/model"
)

// maxPrecision bounds the decimal places a domain may declare.
const maxPrecision = 9

// snap absorbs binary representation error when a decimal bound is scaled
// to its precision grid, so 0.3 at one decimal stays 3 and not 3.0000000000000004.
const snap = 1e-9

// Domain is the inclusive valid range of one feature and the number of
// decimal places its values carry.
type Domain struct {
	Min       float64
	Max       float64
	Precision int
}

// Validate checks that the domain is well formed.
func (d Domain) Validate() error {
	switch {
	case math.IsNaN(d.Min) || math.IsNaN(d.Max) || math.IsInf(d.Min, 0) || math.IsInf(d.Max, 0):
		return fmt.Errorf("%w: bounds must be finite", ErrInvalidDomain)
	case d.Min >= d.Max:
		return fmt.Errorf("%w: min %g must be below max %g", ErrInvalidDomain, d.Min, d.Max)
	case d.Precision < 0 || d.Precision > maxPrecision:
		return fmt.Errorf("%w: precision %d outside [0,%d]", ErrInvalidDomain, d.Precision, maxPrecision)
	case d.lowest() > d.highest():
		return fmt.Errorf("%w: no value with %d decimals inside [%g, %g]", ErrInvalidDomain, d.Precision, d.Min, d.Max)
	}
	return nil
}

func (d Domain) scale() float64 { return math.Pow(10, float64(d.Precision)) }

// lowest is the smallest value at Precision that is not below Min.
func (d Domain) lowest() float64 {
	s := d.scale()
	return math.Ceil(d.Min*s-snap) / s
}

// highest is the largest value at Precision that is not above Max.
func (d Domain) highest() float64 {
	s := d.scale()
	return math.Floor(d.Max*s+snap) / s
}

// Contains reports whether x lies inside [Min, Max].
func (d Domain) Contains(x float64) bool {
	return x >= d.Min && x <= d.Max
}

// Clamp limits x to [Min, Max].
func (d Domain) Clamp(x float64) float64 {
	return math.Max(d.Min, math.Min(d.Max, x))
}

// Round rounds x half away from zero to Precision decimal places.
func (d Domain) Round(x float64) float64 {
	scale := d.scale()
	r := math.Round(x*scale) / scale
	if r == 0 {
		// drop negative zero so it never prints as "-0.0"
		return 0
	}
	return r
}

// Enforce clamps then rounds. A bound that is not a multiple of the
// precision can round outside the domain; such values move to the nearest
// multiple inside it.
func (d Domain) Enforce(x float64) float64 {
	r := d.Round(d.Clamp(x))
	switch {
	case r < d.Min:
		r = d.lowest()
	case r > d.Max:
		r = d.highest()
	}
	if r == 0 {
		return 0
	}
	return r
}

// Table holds one Domain per feature, indexed by model.Feature.
type Table [model.NumFeatures]Domain

// DefaultTable returns the built-in feature domains.
func DefaultTable() Table {
	var t Table
	t[model.ScorePercentage] = Domain{Min: 0, Max: 100, Precision: 1}
	t[model.HardQuestionAccuracy] = Domain{Min: 0, Max: 100, Precision: 1}
	t[model.HintUsagePercentage] = Domain{Min: 0, Max: 100, Precision: 1}
	t[model.AvgConfidence] = Domain{Min: 1, Max: 5, Precision: 2}
	t[model.AnswerChangesRate] = Domain{Min: 0, Max: 5, Precision: 3}
	t[model.TabSwitchesRate] = Domain{Min: 0, Max: 10, Precision: 2}
	t[model.AvgTimePerQuestion] = Domain{Min: 1, Max: 300, Precision: 1}
	t[model.ReviewPercentage] = Domain{Min: 0, Max: 100, Precision: 1}
	t[model.AvgFirstActionLatency] = Domain{Min: 0.5, Max: 60, Precision: 2}
	t[model.ClicksPerQuestion] = Domain{Min: 1, Max: 50, Precision: 1}
	t[model.PerformanceTrend] = Domain{Min: -50, Max: 50, Precision: 1}
	return t
}

// Domain returns the domain of f.
func (t Table) Domain(f model.Feature) Domain { return t[f] }

// With returns a copy of t with f's domain replaced.
func (t Table) With(f model.Feature, d Domain) (Table, error) {
	if !f.Valid() {
		return t, fmt.Errorf("%w: %d", model.ErrUnknownFeature, int(f))
	}
	if err := d.Validate(); err != nil {
		return t, fmt.Errorf("domain %s: %w", f, err)
	}
	t[f] = d
	return t, nil
}

// Validate checks every domain in the table.
func (t Table) Validate() error {
	for i, d := range t {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("domain %s: %w", model.Feature(i), err)
		}
	}
	return nil
}
