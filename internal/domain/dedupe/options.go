package dedupe

import (
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// Option applies a configuration option to the guard.
type Option func(*guard)

// WithClock sets the time source used for CalculatedAt and the calendar day.
func WithClock(c model.Clock) Option {
	return func(g *guard) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLocation sets the time zone that defines calendar day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(g *guard) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithIDGenerator replaces the snapshot id generator.
func WithIDGenerator(next func() string) Option {
	return func(g *guard) {
		if next != nil {
			g.newID = next
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *guard) {
		if l != nil {
			g.logger = l
		}
	}
}
