package scoring

import (
	"github.com/uara-ai/healthscore/internal/domain/model"
)

// maxScoreValue is the upper bound of category and overall scores.
const maxScoreValue = 100

// AggregateCategory folds the normalized marker scores of one category into a
// CategoryScore. Markers without data are excluded from the numerator and
// denominator alike, so missing data never pulls the score down. The second
// return value is false when no weighted marker had data; such a category is
// omitted from the snapshot instead of being reported as zero.
func AggregateCategory(category model.Category, scores []model.MarkerScore, weights map[model.MarkerID]float64) (model.CategoryScore, bool) {
	var (
		totalWeight   float64
		presentWeight float64
		weighted      float64
		count         int
	)
	for _, s := range scores {
		if s.Category != category {
			continue
		}
		w := weights[s.MarkerID]
		if w <= 0 {
			continue
		}
		totalWeight += w
		if s.NormalizedValue == nil {
			continue
		}
		presentWeight += w
		weighted += w * *s.NormalizedValue
		count++
	}
	if presentWeight == 0 || totalWeight == 0 {
		return model.CategoryScore{}, false
	}
	return model.CategoryScore{
		Category:      category,
		Score:         clamp(maxScoreValue*weighted/presentWeight, 0, maxScoreValue),
		MarkerCount:   count,
		CoveredWeight: presentWeight / totalWeight,
	}, true
}

// Compose returns the weighted mean of the present category scores,
// renormalized over the weights of the categories that are present.
func Compose(categories []model.CategoryScore, categoryWeights map[model.Category]float64) (float64, error) {
	var sum, weight float64
	for _, c := range categories {
		w := categoryWeights[c.Category]
		if w <= 0 {
			continue
		}
		sum += w * c.Score
		weight += w
	}
	if weight == 0 {
		return 0, ErrNoScorableData
	}
	return clamp(sum/weight, 0, maxScoreValue), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
