package constraints

import (
	"fmt"
	"math"

	"github.com/okian/xscaffold/internal/domain/model"
)

// Enforce clamps every field of v into its domain and rounds it to the
// domain's precision. Out-of-range input is expected from Gaussian sampling
// and is never an error.
func (t Table) Enforce(v model.FeatureVector) model.FeatureVector {
	var out model.FeatureVector
	for i := range v {
		out[i] = t[i].Enforce(v[i])
	}
	return out
}

// OutOfRange lists the features of v that Enforce would clamp.
func (t Table) OutOfRange(v model.FeatureVector) []model.Feature {
	var out []model.Feature
	for i, x := range v {
		if !t[i].Contains(x) {
			out = append(out, model.Feature(i))
		}
	}
	return out
}

// Check validates v against the table without modifying it. It returns a
// *model.InvalidFeatureError for the first value that is not finite or lies
// outside its nominal domain.
func (t Table) Check(v model.FeatureVector) error {
	for i, x := range v {
		f := model.Feature(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &model.InvalidFeatureError{Feature: f.String(), Value: x, Reason: "not a finite number"}
		}
		d := t[i]
		if !d.Contains(x) {
			return &model.InvalidFeatureError{
				Feature: f.String(),
				Value:   x,
				Reason:  fmt.Sprintf("%g outside [%g, %g]", x, d.Min, d.Max),
			}
		}
	}
	return nil
}
