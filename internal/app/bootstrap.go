package service

import (
	"context"
	"fmt"

	"github.com/uara-ai/healthscore/internal/adapters/mq/invalidation"
	"github.com/uara-ai/healthscore/internal/adapters/mq/queue"
	"github.com/uara-ai/healthscore/internal/adapters/mq/worker"
	"github.com/uara-ai/healthscore/internal/adapters/repository"
	"github.com/uara-ai/healthscore/internal/config"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
	"github.com/uara-ai/healthscore/internal/domain/trend"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// FromConfig builds the store, the publisher and the Service described by
// cfg. Extra opts are applied after the configured ones.
func FromConfig(ctx context.Context, cfg *config.Config, l logger.Logger, opts ...Option) (*Service, error) {
	if l == nil {
		l = logger.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(l),
		WithScorer(scoring.NewScorer(scoring.WithCatalog(catalog))),
		WithAnalyzer(trend.NewAnalyzer(trend.WithThresholds(thresholds))),
		WithPublisher(NewPublisher(ctx, cfg, l)),
		WithLocation(loc),
		WithAlgorithmVersion(cfg.AlgorithmVersion),
		WithDefaultWindowDays(cfg.DefaultWindowDays),
	}
	return New(store, append(base, opts...)...), nil
}

// OpenStore opens the snapshot store selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreSQLite:
		return repository.Open(ctx, repository.DriverSQLite, cfg.StoreDSN)
	case config.StorePostgres:
		return repository.Open(ctx, repository.DriverPostgres, cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// NewPublisher builds the invalidation publisher selected by cfg. Signals
// are always logged; Kafka is added when brokers are configured. With a
// positive queue size delivery moves onto a started worker pool.
func NewPublisher(ctx context.Context, cfg *config.Config, l logger.Logger) invalidation.Publisher {
	if !cfg.InvalidationEnabled {
		return invalidation.Multi{}
	}
	if l == nil {
		l = logger.Nop()
	}
	pubs := invalidation.Multi{invalidation.NewLogPublisher(l)}
	if len(cfg.KafkaBrokers) > 0 {
		pubs = append(pubs, invalidation.NewKafkaPublisher(invalidation.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)))
	}
	if cfg.InvalidationQueueSize == 0 {
		return pubs
	}
	pool := worker.NewPool(cfg.InvalidationWorkers,
		queue.NewInMemoryQueue(queue.WithCapacity(cfg.InvalidationQueueSize)),
		pubs,
		worker.WithPoolLogger(l.Named("invalidation")),
	)
	pool.Start(ctx)
	return pool
}
