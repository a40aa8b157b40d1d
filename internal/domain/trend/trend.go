// Package trend classifies metric series as rising, falling or stable by
// comparing the average of a recent window with the window before it.
package trend

import (
	"math"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Point is one dated sample. A nil Value means the day has no data.
type Point struct {
	Date  string
	Value *float64
}

// Series is one metric to analyze.
type Series struct {
	MetricID string
	Family   model.Family
	Points   []Point
}

// Analyzer computes windowed-average trends. It is safe for concurrent use.
type Analyzer struct {
	thresholds Thresholds
	fallback   float64
}

// NewAnalyzer creates an analyzer with the default threshold table.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		thresholds: DefaultThresholds(),
		fallback:   DefaultFallbackThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the direction threshold in percent for family.
func (a *Analyzer) Threshold(family model.Family) float64 {
	if pct, ok := a.thresholds[family]; ok {
		return pct
	}
	return a.fallback
}

// Trend compares the last windowDays/2 points of series (oldest first) with
// the windowDays/2 points immediately before them. Null points are dropped
// inside each window. A change that does not strictly exceed the family
// threshold is stable.
func (a *Analyzer) Trend(metricID string, family model.Family, series []Point, windowDays int) model.TrendResult {
	if windowDays < minWindowDays {
		windowDays = minWindowDays
	}
	res := model.TrendResult{
		MetricID:   metricID,
		Direction:  model.DirectionStable,
		WindowDays: windowDays,
	}

	half := windowDays / 2
	end := len(series)
	recentStart := max(end-half, 0)
	priorStart := max(recentStart-half, 0)

	recent, okRecent := average(series[recentStart:end])
	prior, okPrior := average(series[priorStart:recentStart])
	if !okRecent || !okPrior || prior == 0 {
		return res
	}

	res.MagnitudePercent = 100 * (recent - prior) / prior
	threshold := a.Threshold(family)
	switch {
	case res.MagnitudePercent > threshold:
		res.Direction = model.DirectionUp
	case res.MagnitudePercent < -threshold:
		res.Direction = model.DirectionDown
	}
	return res
}

// Batch runs Trend independently for each series, preserving order.
func (a *Analyzer) Batch(series []Series, windowDays int) []model.TrendResult {
	out := make([]model.TrendResult, 0, len(series))
	for _, s := range series {
		out = append(out, a.Trend(s.MetricID, s.Family, s.Points, windowDays))
	}
	return out
}

func average(points []Point) (float64, bool) {
	var sum float64
	var n int
	for _, p := range points {
		if p.Value == nil || !finite(*p.Value) {
			continue
		}
		sum += *p.Value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
