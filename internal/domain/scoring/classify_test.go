package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/xscaffold/internal/domain/model"
	scoring "github.com/okian/xscaffold/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given scores on and around every breakpoint", t, func() {
		cases := []struct {
			score float64
			level model.MasteryLevel
		}{
			{0, model.AtRisk},
			{35.999, model.AtRisk},
			{36, model.Developing},
			{55.999, model.Developing},
			{56, model.Proficient},
			{75.999, model.Proficient},
			{76, model.Advanced},
			{100, model.Advanced},
		}

		Convey("Then each maps to the level whose interval contains it", func() {
			for _, c := range cases {
				level, err := scoring.Classify(c.score)
				So(err, ShouldBeNil)
				So(level, ShouldEqual, c.level)
			}
		})
	})

	Convey("Given scores outside [0, 100]", t, func() {
		for _, s := range []float64{-0.1, 100.1, math.NaN()} {
			_, err := scoring.Classify(s)
			So(errors.Is(err, scoring.ErrScoreOutOfRange), ShouldBeTrue)
		}
	})
}

func TestRound(t *testing.T) {
	Convey("Given scores near a breakpoint", t, func() {
		So(scoring.Round(55.96, 1), ShouldEqual, 56.0)
		So(scoring.Round(66.2000000001, 1), ShouldEqual, 66.2)
		So(scoring.Round(12.345, -1), ShouldEqual, 12.345)
	})
}
