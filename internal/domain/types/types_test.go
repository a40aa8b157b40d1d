package types_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/uara-ai/healthscore/internal/domain/model"
	types "github.com/uara-ai/healthscore/internal/domain/types"
)

func TestBreakdown(t *testing.T) {
	Convey("Given a snapshot with a scored and an unscored category", t, func() {
		snap := model.Snapshot{
			CategoryScores: []model.CategoryScore{
				{Category: model.CategorySleep, Score: 82, MarkerCount: 1, CoveredWeight: 0.4},
			},
			MarkerScores: []model.MarkerScore{
				{MarkerID: "sleep_performance", Category: model.CategorySleep, NormalizedValue: model.Float(0.82), RawValue: model.Float(82)},
				{MarkerID: "sleep_efficiency", Category: model.CategorySleep},
				{MarkerID: "bmi", Category: model.CategoryBodyComposition},
			},
		}

		Convey("When breaking down the scored category", func() {
			b := types.Breakdown(snap, model.CategorySleep)

			Convey("Then score, coverage and its markers are returned", func() {
				So(*b.Score, ShouldEqual, 82)
				So(b.MarkerCount, ShouldEqual, 1)
				So(b.CoveredWeight, ShouldEqual, 0.4)
				So(b.Markers, ShouldHaveLength, 2)
			})
		})

		Convey("When breaking down a category without data", func() {
			b := types.Breakdown(snap, model.CategoryBodyComposition)

			Convey("Then the score is absent rather than zero", func() {
				So(b.Score, ShouldBeNil)
				So(b.Markers, ShouldHaveLength, 1)
				So(b.Markers[0].NormalizedValue, ShouldBeNil)
			})
		})

		Convey("When breaking down a category with no markers in the snapshot", func() {
			b := types.Breakdown(snap, model.CategoryMovement)

			So(b.Score, ShouldBeNil)
			So(b.Markers, ShouldNotBeNil)
			So(b.Markers, ShouldBeEmpty)
		})
	})
}
