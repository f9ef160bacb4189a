// Package sampler draws synthetic feature vectors whose joint distribution
// reproduces the reference correlation structure.
package sampler

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/reference"
)

// DefaultEpsilon is the ridge added to the correlation diagonal before
// factorization.
const DefaultEpsilon = 1e-3

// Option configures a Sampler.
type Option func(*Sampler)

// WithEpsilon sets the diagonal regularization. Negative values are ignored;
// zero disables regularization.
func WithEpsilon(eps float64) Option {
	return func(s *Sampler) {
		if eps >= 0 {
			s.epsilon = eps
		}
	}
}

// Sampler holds the Cholesky factor of the regularized correlation matrix.
// It is read-only after New and safe for concurrent use; each goroutine must
// bring its own *rand.Rand.
type Sampler struct {
	stats       *reference.Statistics
	epsilon     float64
	regularized *mat.SymDense
	factor      *mat.TriDense
}

// New regularizes the correlation matrix of stats as C + eps*I and factors it
// as L*L^T. It fails with *NumericalInstabilityError when the regularized
// matrix is not positive definite.
func New(stats *reference.Statistics, opts ...Option) (*Sampler, error) {
	if stats == nil {
		return nil, fmt.Errorf("sampler: %w", ErrNilStatistics)
	}
	s := &Sampler{stats: stats, epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(s)
	}

	c := stats.CorrelationMatrix()
	for i := 0; i < model.NumFeatures; i++ {
		c.SetSym(i, i, c.At(i, i)+s.epsilon)
	}
	s.regularized = c

	var chol mat.Cholesky
	if ok := chol.Factorize(c); !ok {
		return nil, &NumericalInstabilityError{Epsilon: s.epsilon}
	}
	var l mat.TriDense
	chol.LTo(&l)
	s.factor = &l
	return s, nil
}

// Epsilon returns the regularization applied.
func (s *Sampler) Epsilon() float64 { return s.epsilon }

// Statistics returns the reference statistics the sampler reproduces.
func (s *Sampler) Statistics() *reference.Statistics { return s.stats }

// Regularized returns a copy of C + eps*I.
func (s *Sampler) Regularized() *mat.SymDense {
	out := mat.NewSymDense(model.NumFeatures, nil)
	out.CopySym(s.regularized)
	return out
}

// Factor returns a copy of the lower-triangular factor L.
func (s *Sampler) Factor() *mat.TriDense {
	out := mat.NewTriDense(model.NumFeatures, mat.Lower, nil)
	out.Copy(s.factor)
	return out
}

// Draw produces one unconstrained vector: z ~ N(0, I), y = L*z and
// x_f = y_f*std_f + mean_f.
func (s *Sampler) Draw(rng *rand.Rand) model.FeatureVector {
	var z model.FeatureVector
	for i := range z {
		z[i] = rng.NormFloat64()
	}

	var out model.FeatureVector
	for i := 0; i < model.NumFeatures; i++ {
		// L is lower triangular so only the first i+1 terms contribute
		var y float64
		for k := 0; k <= i; k++ {
			y += s.factor.At(i, k) * z[k]
		}
		f := model.Feature(i)
		out[i] = y*s.stats.StdDev(f) + s.stats.Mean(f)
	}
	return out
}

// Sample draws n vectors from rng in order.
func (s *Sampler) Sample(rng *rand.Rand, n int) []model.FeatureVector {
	if n <= 0 {
		return nil
	}
	out := make([]model.FeatureVector, n)
	for i := range out {
		out[i] = s.Draw(rng)
	}
	return out
}

// NewStream returns the generator for one substream of a run. Substreams are
// keyed by (seed, stream) only, so a batch draws the same values no matter
// which worker runs it or in what order.
func NewStream(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream)) //nolint:gosec // reproducible sampling, not security
}
