package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// BenchmarkResult holds the results of one operation in a benchmark run.
type BenchmarkResult struct {
	Operation  string
	TotalOps   int64
	ErrorCount int64
	AvgLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration
	Throughput float64 // ops/sec
}

// StressTestConfig describes a mixed read/write load against a Store.
type StressTestConfig struct {
	Users             int
	HistoryDays       int
	ConcurrentWorkers int
	OpsPerWorker      int

	// API call distribution (fractions summing to 1)
	InsertDailyRatio float64
	AppendRatio      float64
	LatestRatio      float64
	SeriesRatio      float64
}

// DefaultStressTestConfig mirrors a day of calculate and dashboard traffic.
func DefaultStressTestConfig() StressTestConfig {
	return StressTestConfig{
		Users:             2_000,
		HistoryDays:       30,
		ConcurrentWorkers: 64,
		OpsPerWorker:      500,

		InsertDailyRatio: 0.30,
		AppendRatio:      0.05,
		LatestRatio:      0.40,
		SeriesRatio:      0.25,
	}
}

type latencyCollector struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int64
}

func (c *latencyCollector) record(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies = append(c.latencies, d)
	if err != nil {
		c.errors++
	}
}

func (c *latencyCollector) result(op string, total time.Duration) BenchmarkResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := BenchmarkResult{Operation: op, TotalOps: int64(len(c.latencies)), ErrorCount: c.errors}
	if len(c.latencies) == 0 {
		return r
	}
	sorted := append([]time.Duration(nil), c.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	pct := func(p float64) time.Duration { return sorted[int(float64(len(sorted)-1)*p)] }
	r.AvgLatency = sum / time.Duration(len(sorted))
	r.P50Latency = pct(0.50)
	r.P95Latency = pct(0.95)
	r.P99Latency = pct(0.99)
	if total > 0 {
		r.Throughput = float64(r.TotalOps) / total.Seconds()
	}
	return r
}

func populate(ctx context.Context, b *testing.B, store Store, cfg StressTestConfig) {
	b.Helper()
	for u := 0; u < cfg.Users; u++ {
		user := fmt.Sprintf("user-%d", u)
		for d := 0; d < cfg.HistoryDays; d++ {
			at := day0.AddDate(0, 0, d)
			if err := store.InsertDaily(ctx, snapshot(fmt.Sprintf("%s-%d", user, d), user, at, float64(40+d%50))); err != nil {
				b.Fatalf("populate: %v", err)
			}
		}
	}
}

// runStressTest drives cfg against store and reports per-operation latency.
func runStressTest(b *testing.B, store Store, cfg StressTestConfig) {
	ctx := context.Background()
	populate(ctx, b, store, cfg)

	ops := []string{"insert_daily", "append", "latest", "daily_series"}
	collectors := map[string]*latencyCollector{}
	for _, op := range ops {
		collectors[op] = &latencyCollector{}
	}
	from := model.CalendarDate(day0, time.UTC)
	to := model.CalendarDate(day0.AddDate(0, 0, cfg.HistoryDays-1), time.UTC)

	b.ResetTimer()
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.ConcurrentWorkers; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			for i := 0; i < cfg.OpsPerWorker; i++ {
				user := fmt.Sprintf("user-%d", rng.IntN(cfg.Users))
				at := day0.AddDate(0, 0, cfg.HistoryDays+rng.IntN(7)).Add(time.Duration(rng.IntN(3600)) * time.Second)
				id := fmt.Sprintf("w%d-%d", seed, i)

				var op string
				var err error
				t0 := time.Now()
				switch p := rng.Float64(); {
				case p < cfg.InsertDailyRatio:
					op = "insert_daily"
					err = store.InsertDaily(ctx, snapshot(id, user, at, rng.Float64()*100))
					if errors.Is(err, ErrConcurrentWriteLost) {
						err = nil
					}
				case p < cfg.InsertDailyRatio+cfg.AppendRatio:
					op = "append"
					snap := snapshot(id, user, at, rng.Float64()*100)
					snap.Forced = true
					err = store.Append(ctx, snap)
				case p < cfg.InsertDailyRatio+cfg.AppendRatio+cfg.LatestRatio:
					op = "latest"
					_, err = store.Latest(ctx, user)
				default:
					op = "daily_series"
					_, err = store.DailySeries(ctx, user, from, to)
				}
				collectors[op].record(time.Since(t0), err)
			}
		}(uint64(w + 1))
	}
	wg.Wait()
	total := time.Since(start)
	b.StopTimer()

	b.Log(strings.Repeat("=", 80))
	b.Logf("%d users, %d days of history, %d workers, %v total", cfg.Users, cfg.HistoryDays, cfg.ConcurrentWorkers, total)
	for _, op := range ops {
		r := collectors[op].result(op, total)
		if r.TotalOps == 0 {
			continue
		}
		b.Logf("%-13s ops=%-7d errors=%-4d avg=%-10v p50=%-10v p95=%-10v p99=%-10v %.0f ops/sec",
			r.Operation, r.TotalOps, r.ErrorCount, r.AvgLatency, r.P50Latency, r.P95Latency, r.P99Latency, r.Throughput)
		if r.ErrorCount > 0 {
			b.Errorf("%s: %d errors", op, r.ErrorCount)
		}
	}
}

func BenchmarkMemoryStore_MixedLoad(b *testing.B) {
	runStressTest(b, NewMemoryStore(), DefaultStressTestConfig())
}

func BenchmarkMemoryStore_WriteHeavy(b *testing.B) {
	cfg := DefaultStressTestConfig()
	cfg.InsertDailyRatio = 0.60
	cfg.AppendRatio = 0.15
	cfg.LatestRatio = 0.15
	cfg.SeriesRatio = 0.10
	runStressTest(b, NewMemoryStore(), cfg)
}

func BenchmarkSQLiteStore_MixedLoad(b *testing.B) {
	store, err := Open(context.Background(), DriverSQLite, filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	cfg := DefaultStressTestConfig()
	cfg.Users = 200
	cfg.ConcurrentWorkers = 8
	cfg.OpsPerWorker = 200
	runStressTest(b, store, cfg)
}

func BenchmarkMemoryStore_InsertDailyContention(b *testing.B) {
	store := NewMemoryStore()
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			err := store.InsertDaily(ctx, snapshot(fmt.Sprintf("c-%d", i), "hot-user", day0, 50))
			if err != nil && !errors.Is(err, ErrConcurrentWriteLost) {
				b.Errorf("insert: %v", err)
			}
		}
	})
}
