package simulate

import (
	"math"
	"math/rand/v2"

	"github.com/uara-ai/healthscore/internal/domain/marker"
	"github.com/uara-ai/healthscore/internal/domain/model"
)

// profile is a user's baseline and daily drift for each marker.
type profile struct {
	base  map[model.MarkerID]float64
	drift map[model.MarkerID]float64
}

// Generator produces deterministic daily marker bags. The same seed,
// user index and day always give the same values.
type Generator struct {
	seed        uint64
	missingRate float64
	defs        []model.MarkerDefinition
}

// NewGenerator creates a generator over the built-in marker catalog.
func NewGenerator(seed uint64, missingRate float64) *Generator {
	return &Generator{seed: seed, missingRate: missingRate, defs: marker.DefaultDefinitions()}
}

func (g *Generator) rng(user, day int) *rand.Rand {
	return rand.New(rand.NewPCG(g.seed, uint64(user)<<32|uint64(day)))
}

func (g *Generator) profile(user int) profile {
	r := g.rng(user, math.MaxUint32)
	p := profile{
		base:  make(map[model.MarkerID]float64, len(g.defs)),
		drift: make(map[model.MarkerID]float64, len(g.defs)),
	}
	for _, d := range g.defs {
		span := d.Max - d.Min
		p.base[d.ID] = d.Min + span*(0.3+0.4*r.Float64())
		// Up to 1% of the range per day in either direction.
		p.drift[d.ID] = span * 0.01 * (2*r.Float64() - 1)
	}
	return p
}

// Day returns the marker bag of user on day. Profile markers such as BMI
// are only reported on the first day of each week.
func (g *Generator) Day(user, day int) model.MarkerValues {
	p := g.profile(user)
	r := g.rng(user, day)
	out := make(model.MarkerValues, len(g.defs))
	for _, d := range g.defs {
		if d.Source == model.SourceProfile && day%7 != 0 {
			continue
		}
		if r.Float64() < g.missingRate {
			out[d.ID] = nil
			continue
		}
		span := d.Max - d.Min
		v := p.base[d.ID] + p.drift[d.ID]*float64(day) + r.NormFloat64()*span*0.05
		out[d.ID] = model.Float(math.Max(d.Min, math.Min(d.Max, v)))
	}
	return out
}
