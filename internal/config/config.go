// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Defaults come from New; Load layers a YAML file and env vars on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/marker"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/trend"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the snapshot store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the data source name for SQL drivers.
	StoreDSN string `koanf:"store_dsn"`

	// AlgorithmVersion is attached to snapshots when a request carries none.
	AlgorithmVersion string `koanf:"algorithm_version"`

	// CalendarTimezone is the IANA zone that defines calendar days.
	CalendarTimezone string `koanf:"calendar_timezone"`

	// DefaultWindowDays is the trend window used when a request carries none.
	DefaultWindowDays int `koanf:"default_window_days"`

	// TrendThresholds overrides per-family stability thresholds in percent.
	TrendThresholds map[string]float64 `koanf:"trend_thresholds"`

	// KafkaBrokers enables Kafka invalidation when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// InvalidationEnabled turns invalidation signals off entirely when false.
	InvalidationEnabled bool `koanf:"invalidation_enabled"`

	// InvalidationQueueSize bounds the asynchronous dispatch queue. Zero
	// delivers signals synchronously on the calculate path.
	InvalidationQueueSize int `koanf:"invalidation_queue_size"`
	InvalidationWorkers   int `koanf:"invalidation_workers"`

	// Markers replaces the built-in marker catalog when set.
	Markers []model.MarkerDefinition `koanf:"markers"`

	// CategoryWeights overrides individual category weights.
	CategoryWeights map[string]float64 `koanf:"category_weights"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StoreDriver:           StoreMemory,
		AlgorithmVersion:      "v1",
		CalendarTimezone:      "UTC",
		DefaultWindowDays:     trend.DefaultWindowDays,
		KafkaTopic:            "health-score-invalidation",
		InvalidationEnabled:   true,
		InvalidationQueueSize: 1024,
		InvalidationWorkers:   2,
	}
}

// Validate checks the configuration and every derived value.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if strings.TrimSpace(c.AlgorithmVersion) == "" {
		return fmt.Errorf("%w: algorithm_version must not be empty", ErrInvalidConfig)
	}
	if c.DefaultWindowDays < 2 {
		return fmt.Errorf("%w: default_window_days must be at least 2", ErrInvalidConfig)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	}
	if c.InvalidationQueueSize < 0 {
		return fmt.Errorf("%w: invalidation_queue_size must not be negative", ErrInvalidConfig)
	}
	if c.InvalidationQueueSize > 0 && c.InvalidationWorkers < 1 {
		return fmt.Errorf("%w: invalidation_workers must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Thresholds(); err != nil {
		return err
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Location resolves CalendarTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar_timezone %q: %w", ErrInvalidConfig, c.CalendarTimezone, err)
	}
	return loc, nil
}

// Thresholds merges TrendThresholds over the built-in thresholds.
func (c *Config) Thresholds() (trend.Thresholds, error) {
	out := trend.DefaultThresholds()
	for name, pct := range c.TrendThresholds {
		family := model.Family(strings.ToLower(name))
		if _, ok := out[family]; !ok {
			return nil, fmt.Errorf("%w: unknown trend family %q", ErrInvalidConfig, name)
		}
		if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 {
			return nil, fmt.Errorf("%w: trend threshold for %q must be a non-negative number", ErrInvalidConfig, name)
		}
		out[family] = pct
	}
	return out, nil
}

// Catalog builds the marker catalog from Markers and CategoryWeights,
// falling back to the built-in definitions and weights.
func (c *Config) Catalog() (*marker.Catalog, error) {
	defs := c.Markers
	if len(defs) == 0 {
		defs = marker.DefaultDefinitions()
	}
	weights := marker.DefaultCategoryWeights()
	for name, w := range c.CategoryWeights {
		cat := model.Category(strings.ToLower(name))
		if !cat.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidConfig, name)
		}
		weights[cat] = w
	}
	catalog, err := marker.NewCatalog(defs, weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return catalog, nil
}
