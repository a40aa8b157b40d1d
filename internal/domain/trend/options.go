package trend

import "github.com/uara-ai/healthscore/internal/domain/model"

// Analyzer defaults. Thresholds are in percent.
const (
	DefaultFallbackThreshold = 5.0
	DefaultWindowDays        = 14
	minWindowDays            = 2
)

// Thresholds maps a metric family to its direction threshold in percent.
type Thresholds map[model.Family]float64

// DefaultThresholds returns the built-in threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		model.FamilyRecovery: 5,
		model.FamilySleep:    5,
		model.FamilyStrain:   10,
		model.FamilyBody:     5,
		model.FamilyScore:    5,
	}
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithThresholds overrides thresholds for the families present in t.
// Negative or non-finite entries are ignored.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) {
		for family, pct := range t {
			if finite(pct) && pct >= 0 {
				a.thresholds[family] = pct
			}
		}
	}
}

// WithFallbackThreshold sets the threshold used for families missing from the table.
func WithFallbackThreshold(pct float64) Option {
	return func(a *Analyzer) {
		if finite(pct) && pct >= 0 {
			a.fallback = pct
		}
	}
}
