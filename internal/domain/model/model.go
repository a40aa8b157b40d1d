// Package model contains domain models passed between layers.
package model

import "time"

// MarkerID identifies a marker in the closed marker catalog.
type MarkerID string

// Category groups related markers.
type Category string

// Known categories, in composition order.
const (
	CategoryRecovery        Category = "recovery"
	CategorySleep           Category = "sleep"
	CategoryMovement        Category = "movement"
	CategoryBodyComposition Category = "body_composition"
)

// Categories returns every known category in composition order.
func Categories() []Category {
	return []Category{
		CategoryRecovery,
		CategorySleep,
		CategoryMovement,
		CategoryBodyComposition,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRecovery, CategorySleep, CategoryMovement, CategoryBodyComposition:
		return true
	}
	return false
}

// Polarity declares which end of a marker's range is the good one.
type Polarity string

const (
	HigherIsBetter Polarity = "higher_is_better"
	LowerIsBetter  Polarity = "lower_is_better"
)

// Source names the collaborator a marker value comes from.
type Source string

const (
	SourceWhoop   Source = "whoop"
	SourceProfile Source = "profile"
)

// Family selects the trend threshold applied to a metric.
type Family string

const (
	FamilyRecovery Family = "recovery"
	FamilySleep    Family = "sleep"
	FamilyStrain   Family = "strain"
	FamilyBody     Family = "body"
	FamilyScore    Family = "score"
)

// MarkerDefinition is static marker configuration.
type MarkerDefinition struct {
	ID       MarkerID `json:"id" koanf:"id"`
	Category Category `json:"category" koanf:"category"`
	Min      float64  `json:"min" koanf:"min"`
	Max      float64  `json:"max" koanf:"max"`
	Polarity Polarity `json:"polarity" koanf:"polarity"`
	Weight   float64  `json:"weight" koanf:"weight"`
	Source   Source   `json:"source" koanf:"source"`
	Family   Family   `json:"family" koanf:"family"`
	Unit     string   `json:"unit,omitempty" koanf:"unit"`
}

// MarkerReading is one observed value. A nil Value means no data.
type MarkerReading struct {
	MarkerID   MarkerID
	Value      *float64
	ObservedAt time.Time
}

// MarkerValues is the marker bag assembled by the data-collection collaborator.
type MarkerValues map[MarkerID]*float64

// MarkerScore is a normalized marker value in [0,1], or nil when unscoreable.
type MarkerScore struct {
	MarkerID        MarkerID `json:"marker_id" db:"marker_id"`
	Category        Category `json:"category" db:"category"`
	NormalizedValue *float64 `json:"normalized_value" db:"normalized_value"`
	RawValue        *float64 `json:"raw_value" db:"raw_value"`
}

// CategoryScore is the weighted score of one category in [0,100].
type CategoryScore struct {
	Category      Category `json:"category"`
	Score         float64  `json:"score"`
	MarkerCount   int      `json:"marker_count"`
	CoveredWeight float64  `json:"covered_weight"`
}

// SourceFlags records which collaborators contributed data.
type SourceFlags struct {
	Whoop   bool `json:"whoop"`
	Profile bool `json:"profile"`
}

// Snapshot is one persisted health score computation. Snapshots are append-only.
type Snapshot struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	CalculatedAt     time.Time       `json:"calculated_at"`
	CalendarDate     string          `json:"calendar_date"`
	OverallScore     float64         `json:"overall_score"`
	CategoryScores   []CategoryScore `json:"category_scores"`
	MarkerScores     []MarkerScore   `json:"marker_scores,omitempty"`
	AlgorithmVersion string          `json:"algorithm_version"`
	SourceFlags      SourceFlags     `json:"source_flags"`
	Forced           bool            `json:"forced"`
}

// Category returns the score for c, if the snapshot has one.
func (s Snapshot) Category(c Category) (CategoryScore, bool) {
	for _, cs := range s.CategoryScores {
		if cs.Category == c {
			return cs, true
		}
	}
	return CategoryScore{}, false
}

// Marker returns the marker score for id, if the snapshot has one.
func (s Snapshot) Marker(id MarkerID) (MarkerScore, bool) {
	for _, ms := range s.MarkerScores {
		if ms.MarkerID == id {
			return ms, true
		}
	}
	return MarkerScore{}, false
}

// Direction is the outcome of a trend comparison.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// TrendResult is a windowed-average comparison for one metric.
type TrendResult struct {
	MetricID         string    `json:"metric_id"`
	Direction        Direction `json:"direction"`
	MagnitudePercent float64   `json:"magnitude_percent"`
	WindowDays       int       `json:"window_days"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
