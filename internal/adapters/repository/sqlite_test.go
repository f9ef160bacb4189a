package repository_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/xscaffold/internal/adapters/repository"
	"github.com/okian/xscaffold/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleProfiles() []model.StudentProfile {
	return []model.StudentProfile{
		{ID: "STU0002", Features: model.FeatureVector{12, 5, 90, 1.25, 2.125, 7.5, 280, 3, 50, 40, -12.5}, Score: 0, Level: model.AtRisk},
		{ID: "STU0001", Features: model.FeatureVector{72.5, 65, 18, 3.8, 0.35, 0.9, 85, 40, 4.5, 4.2, 8}, Score: 66.2, Level: model.Proficient},
	}
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store, err := repository.Open(":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		run := repository.RunRecord{
			ID:        "run-a",
			CreatedAt: base,
			Seed:      math.MaxUint64,
			Epsilon:   1e-3,
			Formula:   "hybrid",
			BatchSize: 1024,
			Requested: 2,
			Generated: 2,
		}

		Convey("When saving a run with profiles", func() {
			So(store.SaveRun(ctx, run, sampleProfiles()), ShouldBeNil)

			Convey("Then the run is read back with its full seed", func() {
				got, err := store.GetRun(ctx, "run-a")
				So(err, ShouldBeNil)
				So(got.Seed, ShouldEqual, uint64(math.MaxUint64))
				So(got.Formula, ShouldEqual, "hybrid")
				So(got.CreatedAt.Equal(base), ShouldBeTrue)
			})

			Convey("Then profiles come back ordered by id", func() {
				ps, err := store.LoadProfiles(ctx, "run-a")
				So(err, ShouldBeNil)
				So(len(ps), ShouldEqual, 2)
				So(ps[0].ID, ShouldEqual, "STU0001")
				So(ps[0].Level, ShouldEqual, model.Proficient)
				So(ps[1].Features, ShouldResemble, sampleProfiles()[0].Features)
			})

			Convey("Then saving the same id again fails and changes nothing", func() {
				err := store.SaveRun(ctx, run, nil)
				So(err, ShouldNotBeNil)
				ps, _ := store.LoadProfiles(ctx, "run-a")
				So(len(ps), ShouldEqual, 2)
			})

			Convey("And a newer run is listed first", func() {
				later := run
				later.ID = "run-b"
				later.CreatedAt = base.Add(time.Hour)
				So(store.SaveRun(ctx, later, nil), ShouldBeNil)

				runs, err := store.ListRuns(ctx, 10)
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 2)
				So(runs[0].ID, ShouldEqual, "run-b")

				runs, err = store.ListRuns(ctx, 1)
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 1)
			})
		})

		Convey("When looking up an unknown run", func() {
			_, err := store.GetRun(ctx, "missing")
			_, err2 := store.LoadProfiles(ctx, "missing")

			Convey("Then not found is reported", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err2, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			_, err := store.ListRuns(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)

			run.ID = ""
			So(errors.Is(store.SaveRun(ctx, run, nil), repository.ErrMissingID), ShouldBeTrue)
		})
	})
}

func TestOpenFile(t *testing.T) {
	Convey("Given a path in a directory that does not exist yet", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "runs.db")
		store, err := repository.Open(path, repository.WithBusyTimeout(time.Second))

		Convey("Then the store is created", func() {
			So(err, ShouldBeNil)
			So(store.Close(), ShouldBeNil)
		})
	})
}
