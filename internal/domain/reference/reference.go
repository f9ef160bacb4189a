// Package reference derives the summary statistics that synthetic sampling
// reproduces: per-feature mean and standard deviation and the Pearson
// correlation matrix of a real dataset.
package reference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/xscaffold/internal/domain/model"
)

const (
	minRecords = 2
	// relative tolerance below which a standard deviation counts as zero
	degenerateTolerance = 1e-12
	// slack allowed when checking a supplied matrix for symmetry and unit diagonal
	matrixTolerance = 1e-9
)

// Statistics holds the reference mean and standard deviation vectors and the
// correlation matrix. A Statistics value never changes after construction.
type Statistics struct {
	mean [model.NumFeatures]float64
	std  [model.NumFeatures]float64
	corr *mat.SymDense
	n    int
}

// Option configures Extract.
type Option func(*extractConfig)

type extractConfig struct {
	varianceFloor float64
}

// WithVarianceFloor lets zero-variance features through: such a feature gets
// standard deviation sqrt(floor) and zero correlation with every other
// feature. A floor <= 0 keeps the default of failing.
func WithVarianceFloor(floor float64) Option {
	return func(c *extractConfig) {
		if floor > 0 && !math.IsInf(floor, 0) {
			c.varianceFloor = floor
		}
	}
}

// Extract computes unbiased (n-1) means and standard deviations and the
// pairwise Pearson correlations of records.
func Extract(records []model.FeatureVector, opts ...Option) (*Statistics, error) {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(records) < minRecords {
		return nil, fmt.Errorf("%w: got %d records, need at least %d", ErrInsufficientData, len(records), minRecords)
	}

	cols := make([][]float64, model.NumFeatures)
	for f := range cols {
		cols[f] = make([]float64, len(records))
	}
	for r, v := range records {
		for f, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, &model.InvalidFeatureError{
					Feature: model.Feature(f).String(),
					Value:   x,
					Reason:  fmt.Sprintf("record %d: not a finite number", r),
				}
			}
			cols[f][r] = x
		}
	}

	s := &Statistics{n: len(records), corr: mat.NewSymDense(model.NumFeatures, nil)}
	var floored [model.NumFeatures]bool
	for f, col := range cols {
		mean, std := stat.MeanStdDev(col, nil)
		if std <= degenerateTolerance*math.Max(1, math.Abs(mean)) {
			if cfg.varianceFloor == 0 {
				return nil, &DegenerateFeatureError{Feature: model.Feature(f)}
			}
			std = math.Sqrt(cfg.varianceFloor)
			floored[f] = true
		}
		s.mean[f] = mean
		s.std[f] = std
	}

	for i := 0; i < model.NumFeatures; i++ {
		s.corr.SetSym(i, i, 1)
		for j := i + 1; j < model.NumFeatures; j++ {
			r := 0.0
			if !floored[i] && !floored[j] {
				r = clampUnit(stat.Correlation(cols[i], cols[j], nil))
			}
			s.corr.SetSym(i, j, r)
		}
	}
	return s, nil
}

// New builds Statistics from precomputed values. corr must be an 11x11
// symmetric matrix with a unit diagonal and entries in [-1, 1]; every
// standard deviation must be positive. The inputs are copied.
func New(mean, std [model.NumFeatures]float64, corr mat.Matrix) (*Statistics, error) {
	r, c := corr.Dims()
	if r != model.NumFeatures || c != model.NumFeatures {
		return nil, fmt.Errorf("%w: correlation matrix is %dx%d, want %dx%d",
			ErrInvalidStatistics, r, c, model.NumFeatures, model.NumFeatures)
	}
	for f := range mean {
		if math.IsNaN(mean[f]) || math.IsInf(mean[f], 0) {
			return nil, fmt.Errorf("%w: mean of %s is not finite", ErrInvalidStatistics, model.Feature(f))
		}
		if !(std[f] > 0) || math.IsInf(std[f], 0) {
			return nil, fmt.Errorf("%w: std of %s must be positive", ErrInvalidStatistics, model.Feature(f))
		}
	}

	sym := mat.NewSymDense(model.NumFeatures, nil)
	for i := 0; i < model.NumFeatures; i++ {
		if math.Abs(corr.At(i, i)-1) > matrixTolerance {
			return nil, fmt.Errorf("%w: diagonal entry %d is %g", ErrInvalidStatistics, i, corr.At(i, i))
		}
		sym.SetSym(i, i, 1)
		for j := i + 1; j < model.NumFeatures; j++ {
			a, b := corr.At(i, j), corr.At(j, i)
			if math.IsNaN(a) || math.Abs(a-b) > matrixTolerance || math.Abs(a) > 1+matrixTolerance {
				return nil, fmt.Errorf("%w: entry (%d,%d) is %g/%g", ErrInvalidStatistics, i, j, a, b)
			}
			sym.SetSym(i, j, clampUnit(a))
		}
	}
	return &Statistics{mean: mean, std: std, corr: sym}, nil
}

// Mean returns the reference mean of f.
func (s *Statistics) Mean(f model.Feature) float64 { return s.mean[f] }

// StdDev returns the reference standard deviation of f.
func (s *Statistics) StdDev(f model.Feature) float64 { return s.std[f] }

// Means returns the mean vector.
func (s *Statistics) Means() model.FeatureVector { return s.mean }

// StdDevs returns the standard deviation vector.
func (s *Statistics) StdDevs() model.FeatureVector { return s.std }

// Correlation returns the correlation between features i and j.
func (s *Statistics) Correlation(i, j model.Feature) float64 { return s.corr.At(int(i), int(j)) }

// CorrelationMatrix returns a copy of the correlation matrix.
func (s *Statistics) CorrelationMatrix() *mat.SymDense {
	out := mat.NewSymDense(model.NumFeatures, nil)
	out.CopySym(s.corr)
	return out
}

// SampleSize is the number of records the statistics were extracted from,
// zero when built with New.
func (s *Statistics) SampleSize() int { return s.n }

// clampUnit absorbs floating drift that would push a correlation past ±1.
func clampUnit(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}
