package service

import (
	"time"

	"github.com/uara-ai/healthscore/internal/adapters/mq/invalidation"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
	"github.com/uara-ai/healthscore/internal/domain/trend"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScorer sets the scorer and, through it, the marker catalog.
func WithScorer(s *scoring.Scorer) Option {
	return func(svc *Service) {
		if s != nil {
			svc.scorer = s
		}
	}
}

// WithAnalyzer sets the trend analyzer.
func WithAnalyzer(a *trend.Analyzer) Option {
	return func(svc *Service) {
		if a != nil {
			svc.analyzer = a
		}
	}
}

// WithPublisher sets the invalidation publisher.
func WithPublisher(p invalidation.Publisher) Option {
	return func(svc *Service) {
		if p != nil {
			svc.publisher = p
		}
	}
}

// WithClock sets the time source.
func WithClock(c model.Clock) Option {
	return func(svc *Service) {
		if c != nil {
			svc.clock = c
		}
	}
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(svc *Service) {
		if loc != nil {
			svc.loc = loc
		}
	}
}

// WithAlgorithmVersion sets the version used when a request carries none.
func WithAlgorithmVersion(v string) Option {
	return func(svc *Service) {
		if v != "" {
			svc.algorithmVersion = v
		}
	}
}

// WithDefaultWindowDays sets the trend window used when a request carries none.
func WithDefaultWindowDays(days int) Option {
	return func(svc *Service) {
		if days > 0 {
			svc.windowDays = days
		}
	}
}

// WithIDGenerator replaces the snapshot id generator.
func WithIDGenerator(next func() string) Option {
	return func(svc *Service) {
		if next != nil {
			svc.newID = next
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}
