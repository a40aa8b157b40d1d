package marker_test

import (
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/uara-ai/healthscore/internal/domain/marker"
	"github.com/uara-ai/healthscore/internal/domain/model"
)

func reading(v *float64) model.MarkerReading {
	return model.MarkerReading{MarkerID: "m", Value: v}
}

func TestNormalize(t *testing.T) {
	Convey("Given a higher-is-better marker on [0,100]", t, func() {
		def := model.MarkerDefinition{ID: "m", Category: model.CategoryRecovery, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 1}

		Convey("When the value is inside the range", func() {
			s := marker.Normalize(reading(model.Float(65)), def)

			Convey("Then it is scaled linearly", func() {
				So(*s.NormalizedValue, ShouldAlmostEqual, 0.65, 1e-12)
				So(*s.RawValue, ShouldEqual, 65)
				So(s.Category, ShouldEqual, model.CategoryRecovery)
			})
		})

		Convey("When the value is outside the range", func() {
			lo := marker.Normalize(reading(model.Float(-20)), def)
			hi := marker.Normalize(reading(model.Float(250)), def)

			Convey("Then it clamps to the boundaries", func() {
				So(*lo.NormalizedValue, ShouldEqual, 0)
				So(*hi.NormalizedValue, ShouldEqual, 1)
				So(*hi.RawValue, ShouldEqual, 250)
			})
		})

		Convey("When the value is missing", func() {
			s := marker.Normalize(reading(nil), def)

			Convey("Then the score carries no data rather than zero", func() {
				So(s.NormalizedValue, ShouldBeNil)
				So(s.RawValue, ShouldBeNil)
			})
		})

		Convey("When the value is not finite", func() {
			So(marker.Normalize(reading(model.Float(math.NaN())), def).NormalizedValue, ShouldBeNil)
			So(marker.Normalize(reading(model.Float(math.Inf(1))), def).NormalizedValue, ShouldBeNil)
		})
	})

	Convey("Given a lower-is-better marker on [40,100]", t, func() {
		def := model.MarkerDefinition{ID: "rhr", Min: 40, Max: 100, Polarity: model.LowerIsBetter, Weight: 1}

		Convey("Then the normalized value is inverted", func() {
			So(*marker.Normalize(reading(model.Float(55)), def).NormalizedValue, ShouldAlmostEqual, 0.75, 1e-12)
			So(*marker.Normalize(reading(model.Float(30)), def).NormalizedValue, ShouldEqual, 1)
			So(*marker.Normalize(reading(model.Float(120)), def).NormalizedValue, ShouldEqual, 0)
		})
	})

	Convey("Given a degenerate range", t, func() {
		def := model.MarkerDefinition{ID: "flat", Min: 5, Max: 5, Polarity: model.HigherIsBetter, Weight: 1}

		Convey("Then the marker is unscoreable", func() {
			s := marker.Normalize(reading(model.Float(5)), def)
			So(s.NormalizedValue, ShouldBeNil)
			So(*s.RawValue, ShouldEqual, 5)
		})
	})

	Convey("Given a sweep of values and ranges", t, func() {
		Convey("Then every normalized value stays within [0,1]", func() {
			for _, pol := range []model.Polarity{model.HigherIsBetter, model.LowerIsBetter} {
				for _, rng := range [][2]float64{{0, 1}, {-10, 10}, {18.5, 40}, {0.1, 0.3}} {
					def := model.MarkerDefinition{Min: rng[0], Max: rng[1], Polarity: pol}
					for v := -100.0; v <= 100; v += 0.7 {
						n := *marker.Normalize(reading(model.Float(v)), def).NormalizedValue
						So(n >= 0 && n <= 1, ShouldBeTrue)
					}
				}
			}
		})
	})
}

func TestCatalog(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		c := marker.DefaultCatalog()

		Convey("Then every category has markers and a weight", func() {
			seen := map[model.Category]bool{}
			for _, d := range c.Definitions() {
				seen[d.Category] = true
			}
			for _, cat := range model.Categories() {
				So(seen[cat], ShouldBeTrue)
				So(c.CategoryWeight(cat), ShouldBeGreaterThan, 0)
			}
		})

		Convey("When resolving a bag with unknown and null keys", func() {
			at := time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC)
			readings, ignored := c.Resolve(model.MarkerValues{
				marker.RecoveryScore: model.Float(70),
				marker.BodyMassIndex: nil,
				"zz_unknown":         model.Float(1),
				"aa_unknown":         model.Float(2),
			}, at)

			Convey("Then every catalog marker gets a reading", func() {
				So(readings, ShouldHaveLength, len(c.Definitions()))
				for _, r := range readings {
					So(r.ObservedAt, ShouldEqual, at)
					switch r.MarkerID {
					case marker.RecoveryScore:
						So(*r.Value, ShouldEqual, 70)
					default:
						So(r.Value, ShouldBeNil)
					}
				}
			})

			Convey("And unknown keys are reported in sorted order", func() {
				So(ignored, ShouldResemble, []model.MarkerID{"aa_unknown", "zz_unknown"})
			})
		})
	})

	Convey("Given invalid definitions", t, func() {
		base := func() []model.MarkerDefinition {
			return []model.MarkerDefinition{
				{ID: "a", Category: model.CategorySleep, Min: 0, Max: 10, Polarity: model.HigherIsBetter, Weight: 1},
			}
		}
		weights := map[model.Category]float64{model.CategorySleep: 1}

		type mutation func([]model.MarkerDefinition) []model.MarkerDefinition
		cases := []struct {
			name   string
			mutate mutation
		}{
			{"degenerate range", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Max = 0; return d }},
			{"inverted range", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Min = 20; return d }},
			{"negative weight", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Weight = -1; return d }},
			{"NaN weight", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Weight = math.NaN(); return d }},
			{"unknown category", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Category = "mood"; return d }},
			{"bad polarity", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Polarity = "sideways"; return d }},
			{"blank id", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].ID = " "; return d }},
			{"zero-weight category", func(d []model.MarkerDefinition) []model.MarkerDefinition { d[0].Weight = 0; return d }},
			{"duplicate id", func(d []model.MarkerDefinition) []model.MarkerDefinition { return append(d, d[0]) }},
		}

		for _, tc := range cases {
			Convey("When the catalog has a "+tc.name, func() {
				_, err := marker.NewCatalog(tc.mutate(base()), weights)

				Convey("Then construction fails fast", func() {
					So(errors.Is(err, marker.ErrInvalidMarkerDefinition), ShouldBeTrue)
				})
			})
		}

		Convey("When a category weight is missing", func() {
			_, err := marker.NewCatalog(base(), map[model.Category]float64{})
			So(errors.Is(err, marker.ErrInvalidMarkerDefinition), ShouldBeTrue)
		})

		Convey("When the catalog is empty", func() {
			_, err := marker.NewCatalog(nil, weights)
			So(errors.Is(err, marker.ErrInvalidMarkerDefinition), ShouldBeTrue)
		})
	})
}
