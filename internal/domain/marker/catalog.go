package marker

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Marker identifiers of the built-in catalog.
const (
	RecoveryScore    model.MarkerID = "recovery_score"
	HRVRMSSD         model.MarkerID = "hrv_rmssd"
	RestingHeartRate model.MarkerID = "resting_heart_rate"
	SpO2Percentage   model.MarkerID = "spo2_percentage"
	SleepPerformance model.MarkerID = "sleep_performance"
	SleepEfficiency  model.MarkerID = "sleep_efficiency"
	SleepConsistency model.MarkerID = "sleep_consistency"
	RespiratoryRate  model.MarkerID = "respiratory_rate"
	DayStrain        model.MarkerID = "day_strain"
	WorkoutStrain    model.MarkerID = "workout_strain"
	WorkoutMinutes   model.MarkerID = "workout_minutes"
	BodyMassIndex    model.MarkerID = "bmi"
)

// Catalog is the validated, immutable set of marker definitions.
type Catalog struct {
	defs            []model.MarkerDefinition
	byID            map[model.MarkerID]model.MarkerDefinition
	categoryWeights map[model.Category]float64
}

// DefaultDefinitions returns the built-in marker set.
func DefaultDefinitions() []model.MarkerDefinition {
	return []model.MarkerDefinition{
		{ID: RecoveryScore, Category: model.CategoryRecovery, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.35, Source: model.SourceWhoop, Family: model.FamilyRecovery, Unit: "%"},
		{ID: HRVRMSSD, Category: model.CategoryRecovery, Min: 10, Max: 150, Polarity: model.HigherIsBetter, Weight: 0.30, Source: model.SourceWhoop, Family: model.FamilyRecovery, Unit: "ms"},
		{ID: RestingHeartRate, Category: model.CategoryRecovery, Min: 40, Max: 100, Polarity: model.LowerIsBetter, Weight: 0.25, Source: model.SourceWhoop, Family: model.FamilyRecovery, Unit: "bpm"},
		{ID: SpO2Percentage, Category: model.CategoryRecovery, Min: 90, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.10, Source: model.SourceWhoop, Family: model.FamilyRecovery, Unit: "%"},
		{ID: SleepPerformance, Category: model.CategorySleep, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.40, Source: model.SourceWhoop, Family: model.FamilySleep, Unit: "%"},
		{ID: SleepEfficiency, Category: model.CategorySleep, Min: 50, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.30, Source: model.SourceWhoop, Family: model.FamilySleep, Unit: "%"},
		{ID: SleepConsistency, Category: model.CategorySleep, Min: 0, Max: 100, Polarity: model.HigherIsBetter, Weight: 0.20, Source: model.SourceWhoop, Family: model.FamilySleep, Unit: "%"},
		{ID: RespiratoryRate, Category: model.CategorySleep, Min: 12, Max: 20, Polarity: model.LowerIsBetter, Weight: 0.10, Source: model.SourceWhoop, Family: model.FamilySleep, Unit: "rpm"},
		{ID: DayStrain, Category: model.CategoryMovement, Min: 0, Max: 21, Polarity: model.HigherIsBetter, Weight: 0.50, Source: model.SourceWhoop, Family: model.FamilyStrain},
		{ID: WorkoutStrain, Category: model.CategoryMovement, Min: 0, Max: 21, Polarity: model.HigherIsBetter, Weight: 0.30, Source: model.SourceWhoop, Family: model.FamilyStrain},
		{ID: WorkoutMinutes, Category: model.CategoryMovement, Min: 0, Max: 120, Polarity: model.HigherIsBetter, Weight: 0.20, Source: model.SourceWhoop, Family: model.FamilyStrain, Unit: "min"},
		{ID: BodyMassIndex, Category: model.CategoryBodyComposition, Min: 18.5, Max: 40, Polarity: model.LowerIsBetter, Weight: 1.0, Source: model.SourceProfile, Family: model.FamilyBody, Unit: "kg/m2"},
	}
}

// DefaultCategoryWeights returns the built-in category weights.
func DefaultCategoryWeights() map[model.Category]float64 {
	return map[model.Category]float64{
		model.CategoryRecovery:        0.30,
		model.CategorySleep:           0.30,
		model.CategoryMovement:        0.25,
		model.CategoryBodyComposition: 0.15,
	}
}

// DefaultCatalog returns the built-in catalog. It panics if the built-in
// definitions fail validation.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions(), DefaultCategoryWeights())
	if err != nil {
		panic(fmt.Sprintf("built-in marker catalog: %v", err))
	}
	return c
}

// NewCatalog validates defs and category weights and builds a Catalog.
// Definitions are copied; the input slices and maps may be reused.
func NewCatalog(defs []model.MarkerDefinition, categoryWeights map[model.Category]float64) (*Catalog, error) {
	if err := Validate(defs, categoryWeights); err != nil {
		return nil, err
	}
	c := &Catalog{
		defs:            make([]model.MarkerDefinition, len(defs)),
		byID:            make(map[model.MarkerID]model.MarkerDefinition, len(defs)),
		categoryWeights: make(map[model.Category]float64, len(categoryWeights)),
	}
	copy(c.defs, defs)
	for _, d := range defs {
		c.byID[d.ID] = d
	}
	for k, v := range categoryWeights {
		c.categoryWeights[k] = v
	}
	return c, nil
}

// Validate checks marker definitions and category weights.
func Validate(defs []model.MarkerDefinition, categoryWeights map[model.Category]float64) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidMarkerDefinition)
	}
	seen := make(map[model.MarkerID]bool, len(defs))
	perCategory := make(map[model.Category]float64)
	for _, d := range defs {
		if strings.TrimSpace(string(d.ID)) == "" {
			return fmt.Errorf("%w: empty marker id", ErrInvalidMarkerDefinition)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate marker %q", ErrInvalidMarkerDefinition, d.ID)
		}
		seen[d.ID] = true
		if !d.Category.Valid() {
			return fmt.Errorf("%w: marker %q has unknown category %q", ErrInvalidMarkerDefinition, d.ID, d.Category)
		}
		if !finite(d.Min) || !finite(d.Max) || d.Min >= d.Max {
			return fmt.Errorf("%w: marker %q has degenerate range [%g,%g]", ErrInvalidMarkerDefinition, d.ID, d.Min, d.Max)
		}
		if !finite(d.Weight) || d.Weight < 0 {
			return fmt.Errorf("%w: marker %q has invalid weight %g", ErrInvalidMarkerDefinition, d.ID, d.Weight)
		}
		switch d.Polarity {
		case model.HigherIsBetter, model.LowerIsBetter:
		default:
			return fmt.Errorf("%w: marker %q has unknown polarity %q", ErrInvalidMarkerDefinition, d.ID, d.Polarity)
		}
		perCategory[d.Category] += d.Weight
	}
	for cat, total := range perCategory {
		if total == 0 {
			return fmt.Errorf("%w: category %q has zero total weight", ErrInvalidMarkerDefinition, cat)
		}
		w, ok := categoryWeights[cat]
		if !ok {
			return fmt.Errorf("%w: category %q has no weight", ErrInvalidMarkerDefinition, cat)
		}
		if !finite(w) || w < 0 {
			return fmt.Errorf("%w: category %q has invalid weight %g", ErrInvalidMarkerDefinition, cat, w)
		}
	}
	return nil
}

// Definitions returns a copy of the definitions in catalog order.
func (c *Catalog) Definitions() []model.MarkerDefinition {
	out := make([]model.MarkerDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id model.MarkerID) (model.MarkerDefinition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// CategoryWeight returns the composition weight of cat.
func (c *Catalog) CategoryWeight(cat model.Category) float64 {
	return c.categoryWeights[cat]
}

// CategoryWeights returns a copy of the category weights.
func (c *Catalog) CategoryWeights() map[model.Category]float64 {
	out := make(map[model.Category]float64, len(c.categoryWeights))
	for k, v := range c.categoryWeights {
		out[k] = v
	}
	return out
}

// Resolve turns a marker bag into one reading per catalog marker. Keys that
// are not in the catalog are returned sorted in ignored and are never scored.
func (c *Catalog) Resolve(values model.MarkerValues, observedAt time.Time) (readings []model.MarkerReading, ignored []model.MarkerID) {
	readings = make([]model.MarkerReading, 0, len(c.defs))
	for _, d := range c.defs {
		r := model.MarkerReading{MarkerID: d.ID, ObservedAt: observedAt}
		if v, ok := values[d.ID]; ok && v != nil {
			r.Value = model.Float(*v)
		}
		readings = append(readings, r)
	}
	for id := range values {
		if _, ok := c.byID[id]; !ok {
			ignored = append(ignored, id)
		}
	}
	sort.Slice(ignored, func(i, j int) bool { return ignored[i] < ignored[j] })
	return readings, ignored
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
