// Package simulate replays synthetic days of marker data through the
// health score engine.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
	"github.com/uara-ai/healthscore/internal/domain/types"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// Calculator is the part of the service a simulation drives.
type Calculator interface {
	CalculateHealthScore(ctx context.Context, userID string, values model.MarkerValues, algorithmVersion string, force bool) (types.Calculation, error)
}

// Clock is a settable time source shared with the service under simulation.
type Clock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewClock creates a clock set to t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now implements model.Clock.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// UserID returns the id of the i-th synthetic user.
func (c Config) UserID(i int) string {
	return c.UserPrefix + strconv.Itoa(i+1)
}

type result struct {
	calc types.Calculation
	err  error
}

// Run replays cfg.Days days for cfg.Users users. Before each day the clock
// is moved forward by 24 hours; calculations within a day run concurrently
// on cfg.Workers workers.
func Run(ctx context.Context, calc Calculator, clock *Clock, cfg Config) (Stats, error) {
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	start := cfg.Start
	if start.IsZero() {
		start = time.Now().UTC().AddDate(0, 0, -cfg.Days)
	}

	began := time.Now()
	gen := NewGenerator(cfg.Seed, cfg.MissingRate)
	stats := Stats{Users: make([]string, cfg.Users)}
	for i := range stats.Users {
		stats.Users[i] = cfg.UserID(i)
	}

	logger.Get().Info(ctx, "starting simulation",
		logger.Int("users", cfg.Users),
		logger.Int("days", cfg.Days),
		logger.Int("workers", cfg.Workers),
		logger.String("start", start.Format(time.RFC3339)))

	for day := 0; day < cfg.Days; day++ {
		now := start.AddDate(0, 0, day)
		clock.Set(now)
		if day == 0 {
			stats.FirstDate = model.CalendarDate(now, time.UTC)
		}
		stats.LastDate = model.CalendarDate(now, time.UTC)

		if err := runDay(ctx, calc, gen, cfg, day, &stats); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(began)
	logger.Get().Info(ctx, "simulation completed",
		logger.Int("calculations", stats.Calculations),
		logger.Int("created", stats.Created),
		logger.Int("no_data", stats.NoData),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// runDay fans one day's calculations out to a worker pool.
func runDay(ctx context.Context, calc Calculator, gen *Generator, cfg Config, day int, stats *Stats) error {
	jobs := make(chan int)
	results := make(chan result, cfg.Users)

	var wg sync.WaitGroup
	for w := 0; w < min(cfg.Workers, cfg.Users); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				res, err := calc.CalculateHealthScore(ctx, cfg.UserID(user), gen.Day(user, day), "", false)
				results <- result{calc: res, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for user := 0; user < cfg.Users; user++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- user:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		stats.Calculations++
		switch {
		case errors.Is(r.err, scoring.ErrNoScorableData):
			stats.NoData++
		case r.err != nil:
			stats.Failed++
			logger.Get().Warn(ctx, "simulated calculation failed", logger.Int("day", day), logger.Error(r.err))
		case r.calc.Recalculated:
			stats.Created++
		default:
			stats.ShortCircuited++
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simulation cancelled on day %d: %w", day, err)
	}
	return nil
}
