package dataset_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/xscaffold/internal/adapters/dataset"
	"github.com/okian/xscaffold/internal/domain/constraints"
	"github.com/okian/xscaffold/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const referenceCSV = `notes,performance_trend,score_percentage,hard_question_accuracy,hint_usage_percentage,avg_confidence,answer_changes_rate,tab_switches_rate,avg_time_per_question,review_percentage,avg_first_action_latency,clicks_per_question
first,8,72.5,65,18,3.8,0.35,0.9,85,40,4.5,4.2
second,-3,55,40,30,3.1,0.8,1.5,120,20,7.25,6
`

func TestParseRecords(t *testing.T) {
	Convey("Given a CSV with reordered and extra columns", t, func() {
		rows, err := dataset.DecodeCSV(strings.NewReader(referenceCSV))
		So(err, ShouldBeNil)

		Convey("When parsing records", func() {
			records, rejected, err := dataset.ParseRecords(rows)

			Convey("Then features are resolved by header name", func() {
				So(err, ShouldBeNil)
				So(rejected, ShouldBeEmpty)
				So(len(records), ShouldEqual, 2)
				So(records[0].Features[model.ScorePercentage], ShouldEqual, 72.5)
				So(records[0].Features[model.PerformanceTrend], ShouldEqual, 8.0)
				So(records[1].Features[model.AvgFirstActionLatency], ShouldEqual, 7.25)
				So(records[1].Row, ShouldEqual, 3)
				So(records[0].ID, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a header without two required columns", t, func() {
		rows := [][]string{{"student_id", "score_percentage"}, {"S1", "10"}}
		_, _, err := dataset.ParseRecords(rows)

		Convey("Then the whole table is rejected and the columns named", func() {
			var me *dataset.MissingColumnsError
			So(errors.As(err, &me), ShouldBeTrue)
			So(len(me.Columns), ShouldEqual, model.NumFeatures-1)
			So(me.Error(), ShouldContainSubstring, "performance_trend")
			So(errors.Is(err, dataset.ErrMissingColumns), ShouldBeTrue)
		})
	})

	Convey("Given rows with a blank and a non-numeric cell", t, func() {
		header := append([]string{"student_id"}, model.FeatureNames()...)
		good := []string{"S1", "72.5", "65", "18", "3.8", "0.35", "0.9", "85", "40", "4.5", "4.2", "8"}
		missing := append([]string{}, good...)
		missing[0], missing[4] = "S2", ""
		bad := append([]string{}, good...)
		bad[0], bad[1] = "S3", "high"
		rows := [][]string{header, good, missing, bad, {"", ""}}

		records, rejected, err := dataset.ParseRecords(rows)

		Convey("Then only the bad rows are reported", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
			So(records[0].ID, ShouldEqual, "S1")
			So(len(rejected), ShouldEqual, 2)
			So(rejected[0].Row, ShouldEqual, 3)
			So(rejected[1].Row, ShouldEqual, 4)
			var fe *model.InvalidFeatureError
			So(errors.As(rejected[1], &fe), ShouldBeTrue)
			So(fe.Feature, ShouldEqual, "score_percentage")
		})
	})
}

func TestReadReference(t *testing.T) {
	Convey("Given reference files on disk", t, func() {
		dir := t.TempDir()

		Convey("When every row parses", func() {
			path := filepath.Join(dir, "ref.csv")
			So(os.WriteFile(path, []byte(referenceCSV), 0o600), ShouldBeNil)
			vs, err := dataset.ReadReference(path)

			Convey("Then all vectors are returned", func() {
				So(err, ShouldBeNil)
				So(len(vs), ShouldEqual, 2)
			})
		})

		Convey("When one row is bad", func() {
			path := filepath.Join(dir, "bad.csv")
			body := referenceCSV + "third,1,x,1,1,1,1,1,1,1,1,1\n"
			So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
			_, err := dataset.ReadReference(path)

			Convey("Then the reference is rejected", func() {
				So(errors.Is(err, model.ErrInvalidFeature), ShouldBeTrue)
			})
		})

		Convey("When the extension is unknown", func() {
			_, err := dataset.ReadReference(filepath.Join(dir, "ref.json"))

			Convey("Then the format is rejected", func() {
				So(errors.Is(err, dataset.ErrUnsupportedFormat), ShouldBeTrue)
			})
		})
	})
}

func profiles() []model.StudentProfile {
	return []model.StudentProfile{
		{
			ID:       "STU0001",
			Features: model.FeatureVector{72.5, 65, 18, 3.8, 0.35, 0.9, 85, 40, 4.5, 4.2, 0},
			Score:    66.2,
			Level:    model.Proficient,
		},
		{
			ID:       "STU0002",
			Features: model.FeatureVector{12, 5, 90, 1.25, 2.125, 7.5, 280, 3, 50, 40, -12.5},
			Score:    0,
			Level:    model.AtRisk,
		},
	}
}

func TestProfileRows(t *testing.T) {
	Convey("Given assembled profiles", t, func() {
		rows := dataset.ProfileRows(profiles(), constraints.DefaultTable(), 1)

		Convey("Then the header has the fixed column order", func() {
			So(rows[0][0], ShouldEqual, "student_id")
			So(rows[0][1], ShouldEqual, "score_percentage")
			So(rows[0][12:], ShouldResemble, []string{"learning_mastery_score", "mastery_level", "mastery_level_name"})
		})

		Convey("Then values use their domain precision", func() {
			So(rows[1], ShouldResemble, []string{
				"STU0001", "72.5", "65.0", "18.0", "3.80", "0.350", "0.90", "85.0", "40.0", "4.50", "4.2", "0.0",
				"66.2", "2", "proficient",
			})
			So(rows[2][11], ShouldEqual, "-12.5")
			So(rows[2][14], ShouldEqual, "at_risk")
		})
	})
}

func TestCSVOutput(t *testing.T) {
	Convey("Given profiles written twice", t, func() {
		var a, b bytes.Buffer
		rows := dataset.ProfileRows(profiles(), constraints.DefaultTable(), 1)
		So(dataset.Encode(&a, dataset.CSV, rows), ShouldBeNil)
		So(dataset.Encode(&b, dataset.CSV, rows), ShouldBeNil)

		Convey("Then the bytes are identical and parse back", func() {
			So(a.String(), ShouldEqual, b.String())
			back, err := dataset.DecodeCSV(&a)
			So(err, ShouldBeNil)
			records, rejected, err := dataset.ParseRecords(back)
			So(err, ShouldBeNil)
			So(rejected, ShouldBeEmpty)
			So(records[1].ID, ShouldEqual, "STU0002")
			So(records[1].Features, ShouldResemble, profiles()[1].Features)
		})
	})
}

func TestXLSX(t *testing.T) {
	Convey("Given profiles written as a workbook", t, func() {
		path := filepath.Join(t.TempDir(), "out", "profiles.xlsx")
		So(dataset.WriteProfiles(path, profiles(), constraints.DefaultTable(), 1), ShouldBeNil)

		Convey("When reading the workbook back", func() {
			records, rejected, err := dataset.ReadRecords(path)

			Convey("Then ids and features survive", func() {
				So(err, ShouldBeNil)
				So(rejected, ShouldBeEmpty)
				So(len(records), ShouldEqual, 2)
				So(records[0].ID, ShouldEqual, "STU0001")
				So(records[0].Features[model.AvgConfidence], ShouldEqual, 3.8)
				So(records[1].Features[model.PerformanceTrend], ShouldEqual, -12.5)
			})
		})
	})
}

func TestXLSXTextColumns(t *testing.T) {
	Convey("Given rows whose ids look like numbers", t, func() {
		rows := [][]string{
			{"student_id", "score_percentage", "mastery_level_name"},
			{"00123", "1.50", "proficient"},
			{"42", "80", "advanced"},
		}
		var buf bytes.Buffer
		So(dataset.EncodeXLSX(&buf, rows), ShouldBeNil)

		Convey("When decoding the workbook", func() {
			back, err := dataset.DecodeXLSX(&buf)

			Convey("Then ids keep their leading zeros and stay text", func() {
				So(err, ShouldBeNil)
				So(len(back), ShouldEqual, 3)
				So(back[1][0], ShouldEqual, "00123")
				So(back[2][0], ShouldEqual, "42")
				So(back[1][2], ShouldEqual, "proficient")
			})

			Convey("Then feature cells are still numbers", func() {
				So(back[1][1], ShouldEqual, "1.5")
			})
		})
	})

	Convey("Given scored records with zero-padded ids written to a workbook", t, func() {
		ps := profiles()
		ps[0].ID = "00123"
		path := filepath.Join(t.TempDir(), "scored.xlsx")
		So(dataset.WriteProfiles(path, ps, constraints.DefaultTable(), 1), ShouldBeNil)

		Convey("Then reading it back gives the same id", func() {
			records, _, err := dataset.ReadRecords(path)
			So(err, ShouldBeNil)
			So(records[0].ID, ShouldEqual, "00123")
		})
	})
}
