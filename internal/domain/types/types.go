// Package types contains the read shapes returned by the service.
package types

import "github.com/uara-ai/healthscore/internal/domain/model"

// Calculation is the result of a calculate request.
type Calculation struct {
	Snapshot       model.Snapshot   `json:"snapshot"`
	Recalculated   bool             `json:"recalculated"`
	IgnoredMarkers []model.MarkerID `json:"ignored_markers,omitempty"`
}

// CategoryBreakdown shows one category of a snapshot with its marker scores.
// Score is nil when the category had no data.
type CategoryBreakdown struct {
	Category      model.Category      `json:"category"`
	Score         *float64            `json:"score"`
	MarkerCount   int                 `json:"marker_count"`
	CoveredWeight float64             `json:"covered_weight"`
	Markers       []model.MarkerScore `json:"markers"`
}

// CategoryPerformance pairs a category's current score with its trend.
type CategoryPerformance struct {
	Category     model.Category    `json:"category"`
	CurrentScore *float64          `json:"current_score"`
	Trend        model.TrendResult `json:"trend"`
}

// Breakdown builds the breakdown of category c from snap.
func Breakdown(snap model.Snapshot, c model.Category) CategoryBreakdown {
	b := CategoryBreakdown{Category: c, Markers: []model.MarkerScore{}}
	if cs, ok := snap.Category(c); ok {
		b.Score = model.Float(cs.Score)
		b.MarkerCount = cs.MarkerCount
		b.CoveredWeight = cs.CoveredWeight
	}
	for _, ms := range snap.MarkerScores {
		if ms.Category == c {
			b.Markers = append(b.Markers, ms)
		}
	}
	return b
}
