package validation_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/validation"
)

func randomVectors(n int, seed uint64) []model.FeatureVector {
	rng := rand.New(rand.NewPCG(seed, 1))
	out := make([]model.FeatureVector, n)
	for i := range out {
		base := rng.NormFloat64()
		for f := range out[i] {
			out[i][f] = 10*float64(f) + base + rng.NormFloat64()
		}
	}
	return out
}

func TestMoments(t *testing.T) {
	Convey("Given a batch of correlated vectors", t, func() {
		vs := randomVectors(500, 7)

		Convey("Then the streaming correlation matches gonum's", func() {
			var m validation.Moments
			for _, v := range vs {
				m.Add(v)
			}
			got, err := m.Correlation()
			So(err, ShouldBeNil)

			data := mat.NewDense(len(vs), model.NumFeatures, nil)
			for i, v := range vs {
				data.SetRow(i, v[:])
			}
			var want mat.SymDense
			stat.CorrelationMatrix(&want, data, nil)

			for i := 0; i < model.NumFeatures; i++ {
				for j := 0; j < model.NumFeatures; j++ {
					So(got.At(i, j), ShouldAlmostEqual, want.At(i, j), 1e-9)
				}
			}
		})

		Convey("Then merging batches matches a single pass", func() {
			var whole, a, b validation.Moments
			for i, v := range vs {
				whole.Add(v)
				if i < 180 {
					a.Add(v)
				} else {
					b.Add(v)
				}
			}
			a.Merge(&b)
			So(a.Count(), ShouldEqual, 500)

			d, err := a.Distance(mustCorr(&whole))
			So(err, ShouldBeNil)
			So(d, ShouldBeLessThan, 1e-9)
		})

		Convey("Then merging into an empty accumulator copies it", func() {
			var a, empty validation.Moments
			for _, v := range vs[:10] {
				a.Add(v)
			}
			empty.Merge(&a)
			empty.Merge(nil)
			So(empty.Count(), ShouldEqual, 10)
		})
	})

	Convey("Given fewer than two vectors", t, func() {
		var m validation.Moments
		m.Add(model.FeatureVector{})
		_, err := m.Correlation()

		Convey("Then correlation is refused", func() {
			So(errors.Is(err, validation.ErrTooFewSamples), ShouldBeTrue)
		})
	})

	Convey("Given a constant feature", t, func() {
		var m validation.Moments
		for _, v := range randomVectors(50, 3) {
			v[model.HintUsagePercentage] = 4
			m.Add(v)
		}
		c, err := m.Correlation()

		Convey("Then it is uncorrelated with the rest", func() {
			So(err, ShouldBeNil)
			So(c.At(int(model.HintUsagePercentage), 0), ShouldEqual, 0)
			So(c.At(int(model.HintUsagePercentage), int(model.HintUsagePercentage)), ShouldEqual, 1)
		})
	})
}

func mustCorr(m *validation.Moments) *mat.SymDense {
	c, err := m.Correlation()
	if err != nil {
		panic(err)
	}
	return c
}

func TestSummarize(t *testing.T) {
	Convey("Given profiles in two of the four levels", t, func() {
		profiles := []model.StudentProfile{
			{ID: "STU1", Score: 20, Level: model.AtRisk},
			{ID: "STU2", Score: 60, Level: model.Proficient},
			{ID: "STU3", Score: 70, Level: model.Proficient},
			{ID: "STU4", Score: 30, Level: model.AtRisk},
		}
		profiles[1].Features[model.ScorePercentage] = 80
		profiles[3].Features[model.ScorePercentage] = 40

		r := validation.Summarize(profiles, 1, 0.05, 0, 1000)

		Convey("Then the distribution is counted", func() {
			So(r.Profiles, ShouldEqual, 4)
			So(r.Rejected, ShouldEqual, 1)
			So(len(r.Levels), ShouldEqual, model.NumLevels)
			So(r.Levels[0].Level, ShouldEqual, "at_risk")
			So(r.Levels[0].Count, ShouldEqual, 2)
			So(r.Levels[0].Percent, ShouldEqual, 50)
			So(r.Levels[3].Count, ShouldEqual, 0)
		})

		Convey("Then column statistics are computed", func() {
			So(r.Score.Mean, ShouldEqual, 45)
			So(r.Score.Min, ShouldEqual, 20)
			So(r.Score.Max, ShouldEqual, 70)
			So(r.Features[model.ScorePercentage].Name, ShouldEqual, "score_percentage")
			So(r.Features[model.ScorePercentage].Max, ShouldEqual, 80)
			So(r.CorrelationTolerance, ShouldEqual, validation.DefaultTolerance)
		})

		Convey("Then empty levels are warned about but distance is fine", func() {
			So(r.OK(), ShouldBeFalse)
			So(len(r.Warnings), ShouldEqual, 2)
			for _, w := range r.Warnings {
				So(w, ShouldStartWith, "no profiles classified")
			}
		})

		Convey("Then the YAML form carries the summary", func() {
			var buf bytes.Buffer
			So(r.WriteYAML(&buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "correlation_distance: 0.05")

			var back validation.Report
			So(yaml.Unmarshal(buf.Bytes(), &back), ShouldBeNil)
			So(back.Levels[2].Count, ShouldEqual, 2)
		})
	})

	Convey("Given a distance beyond tolerance with no sample count", t, func() {
		r := validation.Summarize(nil, 0, 0.3, 0.2, 0)

		Convey("Then a warning is raised against the bare tolerance", func() {
			So(r.CorrelationThreshold, ShouldEqual, 0.2)
			So(len(r.Warnings), ShouldEqual, 1)
			So(strings.Contains(r.Warnings[0], "exceeds threshold"), ShouldBeTrue)
			So(r.Levels[0].Percent, ShouldEqual, 0)
		})
	})
}

func TestThreshold(t *testing.T) {
	Convey("Given the default tolerance", t, func() {
		Convey("Then sampling noise shrinks with the number of draws", func() {
			So(validation.SamplingNoise(1), ShouldEqual, 0)
			So(validation.SamplingNoise(110), ShouldAlmostEqual, 1, 1e-12)
			So(validation.SamplingNoise(11000), ShouldAlmostEqual, 0.1, 1e-12)
			So(validation.Threshold(0.1, 11000), ShouldAlmostEqual, 0.2, 1e-12)
		})

		Convey("Then a distance typical of 1000 correct draws is not flagged", func() {
			r := validation.Summarize(nil, 0, 0.3, validation.DefaultTolerance, 1000)
			So(r.CorrelationSamples, ShouldEqual, 1000)
			So(r.Warnings, ShouldBeEmpty)
		})

		Convey("Then the same distance over 20000 draws is flagged", func() {
			r := validation.Summarize(nil, 0, 0.3, validation.DefaultTolerance, 20000)
			So(len(r.Warnings), ShouldEqual, 1)
			So(r.Warnings[0], ShouldContainSubstring, "20000 draws")
		})
	})
}
