package scoring_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/uara-ai/healthscore/internal/domain/marker"
	"github.com/uara-ai/healthscore/internal/domain/model"
	scoring "github.com/uara-ai/healthscore/internal/domain/scoring"
)

func testCatalog() *marker.Catalog {
	c, err := marker.NewCatalog([]model.MarkerDefinition{
		{ID: "a", Category: model.CategoryRecovery, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.6, Source: model.SourceWhoop},
		{ID: "b", Category: model.CategoryRecovery, Min: 40, Max: 100, Polarity: model.LowerIsBetter, Weight: 0.4, Source: model.SourceWhoop},
		{ID: "c", Category: model.CategorySleep, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 1, Source: model.SourceWhoop},
	}, map[model.Category]float64{
		model.CategoryRecovery: 0.5,
		model.CategorySleep:    0.5,
	})
	if err != nil {
		panic(err)
	}
	return c
}

func readings(values map[model.MarkerID]float64) []model.MarkerReading {
	out := make([]model.MarkerReading, 0, len(values))
	for id, v := range values {
		out = append(out, model.MarkerReading{MarkerID: id, Value: model.Float(v)})
	}
	return out
}

func TestAggregateCategory(t *testing.T) {
	Convey("Given marker scores for one category", t, func() {
		weights := map[model.MarkerID]float64{"a": 0.6, "b": 0.4}
		scores := []model.MarkerScore{
			{MarkerID: "a", Category: model.CategoryRecovery, NormalizedValue: model.Float(0.8)},
			{MarkerID: "b", Category: model.CategoryRecovery, NormalizedValue: model.Float(0.75)},
			{MarkerID: "c", Category: model.CategorySleep, NormalizedValue: model.Float(0.1)},
		}

		Convey("When every marker has data", func() {
			cs, ok := scoring.AggregateCategory(model.CategoryRecovery, scores, weights)

			Convey("Then the score is the weighted mean scaled to 100", func() {
				So(ok, ShouldBeTrue)
				So(cs.Score, ShouldAlmostEqual, 78, 1e-9)
				So(cs.MarkerCount, ShouldEqual, 2)
				So(cs.CoveredWeight, ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When one marker has no data", func() {
			scores[1].NormalizedValue = nil
			cs, ok := scoring.AggregateCategory(model.CategoryRecovery, scores, weights)

			Convey("Then it is excluded from the weights", func() {
				So(ok, ShouldBeTrue)
				So(cs.Score, ShouldAlmostEqual, 80, 1e-9)
				So(cs.MarkerCount, ShouldEqual, 1)
				So(cs.CoveredWeight, ShouldAlmostEqual, 0.6, 1e-9)
			})
		})

		Convey("When no marker has data", func() {
			scores[0].NormalizedValue = nil
			scores[1].NormalizedValue = nil
			_, ok := scoring.AggregateCategory(model.CategoryRecovery, scores, weights)

			Convey("Then the category is omitted", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestCompose(t *testing.T) {
	Convey("Given category weights", t, func() {
		weights := map[model.Category]float64{
			model.CategoryRecovery: 0.3,
			model.CategorySleep:    0.3,
			model.CategoryMovement: 0.4,
		}

		Convey("When all categories are present", func() {
			score, err := scoring.Compose([]model.CategoryScore{
				{Category: model.CategoryRecovery, Score: 50},
				{Category: model.CategorySleep, Score: 70},
				{Category: model.CategoryMovement, Score: 90},
			}, weights)

			So(err, ShouldBeNil)
			So(score, ShouldAlmostEqual, 0.3*50+0.3*70+0.4*90, 1e-9)
		})

		Convey("When a category is missing", func() {
			score, err := scoring.Compose([]model.CategoryScore{
				{Category: model.CategoryRecovery, Score: 50},
				{Category: model.CategorySleep, Score: 70},
			}, weights)

			Convey("Then the weights renormalize over what is present", func() {
				So(err, ShouldBeNil)
				So(score, ShouldAlmostEqual, 60, 1e-9)
			})
		})

		Convey("When nothing is present", func() {
			_, err := scoring.Compose(nil, weights)
			So(errors.Is(err, scoring.ErrNoScorableData), ShouldBeTrue)
		})
	})
}

func TestScorer_Score(t *testing.T) {
	Convey("Given a scorer over a small catalog", t, func() {
		s := scoring.NewScorer(scoring.WithCatalog(testCatalog()))

		Convey("When every marker has data", func() {
			res, err := s.Score(readings(map[model.MarkerID]float64{"a": 80, "b": 55, "c": 60}), "v1.2.0")

			Convey("Then categories and overall score follow the weights", func() {
				So(err, ShouldBeNil)
				So(res.Categories, ShouldHaveLength, 2)
				So(res.Categories[0].Category, ShouldEqual, model.CategoryRecovery)
				So(res.Categories[0].Score, ShouldAlmostEqual, 78, 1e-9)
				So(res.Categories[1].Score, ShouldAlmostEqual, 60, 1e-9)
				So(res.OverallScore, ShouldAlmostEqual, 69, 1e-9)
				So(res.AlgorithmVersion, ShouldEqual, "v1.2.0")
				So(res.Markers, ShouldHaveLength, 3)
				So(res.SourceFlags.Whoop, ShouldBeTrue)
				So(res.SourceFlags.Profile, ShouldBeFalse)
			})
		})

		Convey("When a whole category is missing", func() {
			res, err := s.Score(readings(map[model.MarkerID]float64{"a": 80, "b": 55}), "v1")

			Convey("Then the overall score is the remaining category", func() {
				So(err, ShouldBeNil)
				So(res.Categories, ShouldHaveLength, 1)
				So(res.OverallScore, ShouldAlmostEqual, 78, 1e-9)
			})
		})

		Convey("When a missing marker is compared to one at the category mean", func() {
			missing, err := s.Score(readings(map[model.MarkerID]float64{"a": 80, "c": 60}), "v1")
			So(err, ShouldBeNil)
			// b=52 normalizes to 0.8, the same as a.
			atMean, err := s.Score(readings(map[model.MarkerID]float64{"a": 80, "b": 52, "c": 60}), "v1")
			So(err, ShouldBeNil)

			Convey("Then missing data neither raises nor lowers the score", func() {
				So(missing.OverallScore, ShouldAlmostEqual, atMean.OverallScore, 1e-9)
				So(missing.Categories[0].CoveredWeight, ShouldAlmostEqual, 0.6, 1e-9)
			})
		})

		Convey("When no marker has data", func() {
			_, err := s.Score([]model.MarkerReading{{MarkerID: "a"}}, "v1")

			Convey("Then the scorer reports no scorable data", func() {
				So(errors.Is(err, scoring.ErrNoScorableData), ShouldBeTrue)
			})
		})

		Convey("When the same input is scored twice", func() {
			in := readings(map[model.MarkerID]float64{"a": 33, "b": 71, "c": 12, "zz": 5})
			first, err1 := s.Score(in, "v1")
			second, err2 := s.Score(in, "v1")

			Convey("Then the results are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})
	})

	Convey("Given the built-in catalog", t, func() {
		s := scoring.NewScorer()

		Convey("When only the profile BMI is known", func() {
			in, _ := s.Catalog().Resolve(model.MarkerValues{marker.BodyMassIndex: model.Float(23)}, time.Time{})
			res, err := s.Score(in, "v1")

			Convey("Then only body composition is scored", func() {
				So(err, ShouldBeNil)
				So(res.Categories, ShouldHaveLength, 1)
				So(res.Categories[0].Category, ShouldEqual, model.CategoryBodyComposition)
				So(res.OverallScore, ShouldAlmostEqual, 100*(1-4.5/21.5), 1e-9)
				So(res.SourceFlags.Profile, ShouldBeTrue)
				So(res.SourceFlags.Whoop, ShouldBeFalse)
			})
		})

		Convey("Then every score stays within [0,100] for extreme inputs", func() {
			for _, v := range []float64{-1e6, -1, 0, 50, 1e6} {
				values := model.MarkerValues{}
				for _, d := range s.Catalog().Definitions() {
					values[d.ID] = model.Float(v)
				}
				in, _ := s.Catalog().Resolve(values, time.Time{})
				res, err := s.Score(in, "v1")
				So(err, ShouldBeNil)
				So(res.OverallScore, ShouldBeBetweenOrEqual, 0, 100)
				for _, c := range res.Categories {
					So(c.Score, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
		})
	})
}
