// Package scoring turns marker readings into category and overall health scores.
package scoring

import (
	"github.com/uara-ai/healthscore/internal/domain/marker"
	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithCatalog replaces the built-in marker catalog.
func WithCatalog(c *marker.Catalog) Option {
	return func(s *Scorer) {
		if c != nil {
			s.catalog = c
		}
	}
}

// Result is the outcome of scoring one marker bag.
type Result struct {
	OverallScore     float64
	Categories       []model.CategoryScore
	Markers          []model.MarkerScore
	AlgorithmVersion string
	SourceFlags      model.SourceFlags
}

// Scorer computes deterministic health scores against a marker catalog.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	catalog *marker.Catalog
	weights map[model.MarkerID]float64
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{catalog: marker.DefaultCatalog()}
	for _, opt := range opts {
		opt(s)
	}
	defs := s.catalog.Definitions()
	s.weights = make(map[model.MarkerID]float64, len(defs))
	for _, d := range defs {
		s.weights[d.ID] = d.Weight
	}
	return s
}

// Catalog returns the catalog the scorer runs against.
func (s *Scorer) Catalog() *marker.Catalog {
	return s.catalog
}

// Score normalizes every reading, aggregates each category and composes the
// overall score. Readings for markers outside the catalog are skipped.
// version is attached to the result verbatim.
func (s *Scorer) Score(readings []model.MarkerReading, version string) (Result, error) {
	byID := make(map[model.MarkerID]model.MarkerReading, len(readings))
	for _, r := range readings {
		byID[r.MarkerID] = r
	}

	defs := s.catalog.Definitions()
	res := Result{
		AlgorithmVersion: version,
		Markers:          make([]model.MarkerScore, 0, len(defs)),
	}
	for _, d := range defs {
		r, ok := byID[d.ID]
		if !ok {
			r = model.MarkerReading{MarkerID: d.ID}
		}
		ms := marker.Normalize(r, d)
		if ms.NormalizedValue != nil {
			switch d.Source {
			case model.SourceWhoop:
				res.SourceFlags.Whoop = true
			case model.SourceProfile:
				res.SourceFlags.Profile = true
			}
		}
		res.Markers = append(res.Markers, ms)
	}

	for _, cat := range model.Categories() {
		if cs, ok := AggregateCategory(cat, res.Markers, s.weights); ok {
			res.Categories = append(res.Categories, cs)
		}
	}

	overall, err := Compose(res.Categories, s.catalog.CategoryWeights())
	if err != nil {
		return Result{}, err
	}
	res.OverallScore = overall
	return res, nil
}
