// Package marker holds the closed marker catalog and the pure normalizer
// that maps raw marker values onto [0,1].
package marker

import (
	"math"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Normalize maps a reading onto [0,1] using the definition's range and polarity.
// Missing, non-finite, or degenerate-range inputs yield a nil NormalizedValue.
func Normalize(reading model.MarkerReading, def model.MarkerDefinition) model.MarkerScore {
	out := model.MarkerScore{
		MarkerID: def.ID,
		Category: def.Category,
	}
	if reading.Value == nil {
		return out
	}
	v := *reading.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return out
	}
	out.RawValue = model.Float(v)

	span := def.Max - def.Min
	if span == 0 || math.IsNaN(span) {
		return out
	}

	clamped := math.Max(def.Min, math.Min(def.Max, v))
	n := (clamped - def.Min) / span
	if def.Polarity == model.LowerIsBetter {
		n = 1 - n
	}
	// (max-min) rounding can leave n a hair outside the unit interval.
	n = math.Max(0, math.Min(1, n))
	out.NormalizedValue = model.Float(n)
	return out
}
