package sampler_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/reference"
	"github.com/okian/xscaffold/internal/domain/sampler"
	. "github.com/smartystreets/goconvey/convey"
)

// ar1Stats returns statistics whose correlation decays as rho^|i-j|, which is
// positive definite for |rho| < 1.
func ar1Stats(rho float64) *reference.Statistics {
	var mean, std model.FeatureVector
	corr := mat.NewSymDense(model.NumFeatures, nil)
	for i := 0; i < model.NumFeatures; i++ {
		mean[i] = float64(10 * (i + 1))
		std[i] = float64(i + 1)
		for j := i; j < model.NumFeatures; j++ {
			corr.SetSym(i, j, math.Pow(rho, float64(j-i)))
		}
	}
	stats, err := reference.New(mean, std, corr)
	if err != nil {
		panic(err)
	}
	return stats
}

func TestNewFactorizes(t *testing.T) {
	Convey("Given a positive definite correlation", t, func() {
		s, err := sampler.New(ar1Stats(0.6))
		So(err, ShouldBeNil)

		Convey("Then epsilon defaults to 1e-3", func() {
			So(s.Epsilon(), ShouldEqual, sampler.DefaultEpsilon)
			So(s.Regularized().At(3, 3), ShouldAlmostEqual, 1.001, 1e-12)
		})

		Convey("Then L times L transposed reproduces the regularized matrix", func() {
			l := s.Factor()
			var prod mat.Dense
			prod.Mul(l, l.T())
			So(mat.EqualApprox(&prod, s.Regularized(), 1e-10), ShouldBeTrue)
		})
	})
}

func TestNewInstability(t *testing.T) {
	Convey("Given a correlation matrix that is not positive definite", t, func() {
		var mean, std model.FeatureVector
		corr := mat.NewSymDense(model.NumFeatures, nil)
		for i := range std {
			std[i] = 1
			corr.SetSym(i, i, 1)
		}
		corr.SetSym(0, 1, 0.9)
		corr.SetSym(0, 2, 0.9)
		corr.SetSym(1, 2, -0.9)
		stats, err := reference.New(mean, std, corr)
		So(err, ShouldBeNil)

		Convey("When factoring with the default epsilon", func() {
			_, err := sampler.New(stats)

			Convey("Then a numerical instability error is returned", func() {
				var ne *sampler.NumericalInstabilityError
				So(errors.As(err, &ne), ShouldBeTrue)
				So(ne.Epsilon, ShouldEqual, sampler.DefaultEpsilon)
				So(errors.Is(err, sampler.ErrNumericalInstability), ShouldBeTrue)
			})
		})

		Convey("When epsilon is large enough", func() {
			_, err := sampler.New(stats, sampler.WithEpsilon(2))

			Convey("Then factorization succeeds", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestSamplePreservesCorrelation(t *testing.T) {
	Convey("Given a sampler over a correlated reference", t, func() {
		stats := ar1Stats(0.7)
		s, err := sampler.New(stats)
		So(err, ShouldBeNil)

		Convey("When drawing a large raw batch", func() {
			const n = 50000
			vs := s.Sample(sampler.NewStream(42, 0), n)
			data := mat.NewDense(n, model.NumFeatures, nil)
			for r, v := range vs {
				data.SetRow(r, v[:])
			}

			Convey("Then the sample correlation is close to the regularized target", func() {
				var got mat.SymDense
				stat.CorrelationMatrix(&got, data, nil)
				var diff mat.Dense
				diff.Sub(&got, s.Regularized())
				So(mat.Norm(&diff, 2), ShouldBeLessThan, 0.1)
			})

			Convey("Then the marginal means and deviations are recovered", func() {
				for _, f := range []model.Feature{model.ScorePercentage, model.PerformanceTrend} {
					col := mat.Col(nil, int(f), data)
					mean, std := stat.MeanStdDev(col, nil)
					So(mean, ShouldAlmostEqual, stats.Mean(f), 0.05*stats.StdDev(f))
					So(std, ShouldAlmostEqual, stats.StdDev(f)*math.Sqrt(1+s.Epsilon()), 0.03*stats.StdDev(f))
				}
			})
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Given two samplers over the same statistics", t, func() {
		a, err := sampler.New(ar1Stats(0.5))
		So(err, ShouldBeNil)
		b, err := sampler.New(ar1Stats(0.5))
		So(err, ShouldBeNil)

		Convey("Then the same seed and stream draw identical vectors", func() {
			So(a.Sample(sampler.NewStream(7, 3), 100), ShouldResemble, b.Sample(sampler.NewStream(7, 3), 100))
		})

		Convey("Then different streams diverge", func() {
			x := a.Draw(sampler.NewStream(7, 0))
			y := a.Draw(sampler.NewStream(7, 1))
			So(x, ShouldNotResemble, y)
		})

		Convey("Then non-positive counts draw nothing", func() {
			So(a.Sample(sampler.NewStream(1, 0), 0), ShouldBeEmpty)
		})
	})
}
