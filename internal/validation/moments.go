package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/xscaffold/internal/domain/model"
)

// Moments accumulates means and co-moments of feature vectors in one pass.
// Batches accumulate separately and are merged; merging in a fixed order
// gives a result independent of how batches were scheduled.
type Moments struct {
	n    float64
	mean [model.NumFeatures]float64
	co   [model.NumFeatures][model.NumFeatures]float64
}

// Count returns the number of vectors seen.
func (m *Moments) Count() int { return int(m.n) }

// Add folds one vector in.
func (m *Moments) Add(v model.FeatureVector) {
	m.n++
	var dx [model.NumFeatures]float64
	for i := range v {
		dx[i] = v[i] - m.mean[i]
		m.mean[i] += dx[i] / m.n
	}
	for i := range v {
		for j := i; j < model.NumFeatures; j++ {
			m.co[i][j] += dx[i] * (v[j] - m.mean[j])
		}
	}
}

// Merge folds another accumulator in.
func (m *Moments) Merge(o *Moments) {
	if o == nil || o.n == 0 {
		return
	}
	if m.n == 0 {
		*m = *o
		return
	}
	n := m.n + o.n
	var delta [model.NumFeatures]float64
	for i := range delta {
		delta[i] = o.mean[i] - m.mean[i]
	}
	w := m.n * o.n / n
	for i := 0; i < model.NumFeatures; i++ {
		for j := i; j < model.NumFeatures; j++ {
			m.co[i][j] += o.co[i][j] + delta[i]*delta[j]*w
		}
	}
	for i := range m.mean {
		m.mean[i] += delta[i] * o.n / n
	}
	m.n = n
}

// Correlation returns the Pearson correlation matrix of the vectors seen.
// A feature with zero variance gets zero correlation with the others.
func (m *Moments) Correlation() (*mat.SymDense, error) {
	if m.n < 2 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooFewSamples, int(m.n))
	}
	out := mat.NewSymDense(model.NumFeatures, nil)
	for i := 0; i < model.NumFeatures; i++ {
		out.SetSym(i, i, 1)
		for j := i + 1; j < model.NumFeatures; j++ {
			d := math.Sqrt(m.co[i][i] * m.co[j][j])
			r := 0.0
			if d > 0 {
				r = math.Max(-1, math.Min(1, m.co[i][j]/d))
			}
			out.SetSym(i, j, r)
		}
	}
	return out, nil
}

// Distance returns the Frobenius norm of the difference between the
// sample correlation and target.
func (m *Moments) Distance(target mat.Symmetric) (float64, error) {
	got, err := m.Correlation()
	if err != nil {
		return 0, err
	}
	var diff mat.Dense
	diff.Sub(got, target)
	return mat.Norm(&diff, 2), nil
}
