package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

var day0 = time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

func snapshot(id, user string, at time.Time, score float64) model.Snapshot {
	return model.Snapshot{
		ID:           id,
		UserID:       user,
		CalculatedAt: at,
		CalendarDate: model.CalendarDate(at, time.UTC),
		OverallScore: score,
		CategoryScores: []model.CategoryScore{
			{Category: model.CategoryRecovery, Score: score, MarkerCount: 2, CoveredWeight: 0.65},
			{Category: model.CategorySleep, Score: score - 1, MarkerCount: 1, CoveredWeight: 0.4},
		},
		MarkerScores: []model.MarkerScore{
			{MarkerID: "recovery_score", Category: model.CategoryRecovery, NormalizedValue: model.Float(score / 100), RawValue: model.Float(score)},
			{MarkerID: "hrv_rmssd", Category: model.CategoryRecovery},
		},
		AlgorithmVersion: "v1",
		SourceFlags:      model.SourceFlags{Whoop: true},
	}
}

func sameSnapshot(t *testing.T, got, want model.Snapshot) {
	t.Helper()
	if got.ID != want.ID || got.UserID != want.UserID || got.CalendarDate != want.CalendarDate {
		t.Fatalf("identity mismatch: got %s/%s/%s want %s/%s/%s", got.ID, got.UserID, got.CalendarDate, want.ID, want.UserID, want.CalendarDate)
	}
	if !got.CalculatedAt.Equal(want.CalculatedAt) {
		t.Errorf("calculated_at: got %v want %v", got.CalculatedAt, want.CalculatedAt)
	}
	if got.OverallScore != want.OverallScore || got.AlgorithmVersion != want.AlgorithmVersion ||
		got.SourceFlags != want.SourceFlags || got.Forced != want.Forced {
		t.Errorf("scalar mismatch: got %+v want %+v", got, want)
	}
	if !reflect.DeepEqual(got.CategoryScores, want.CategoryScores) {
		t.Errorf("category scores: got %+v want %+v", got.CategoryScores, want.CategoryScores)
	}
	if !reflect.DeepEqual(got.MarkerScores, want.MarkerScores) {
		t.Errorf("marker scores: got %+v want %+v", got.MarkerScores, want.MarkerScores)
	}
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "healthscore.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_InsertDaily(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			first := snapshot("s1", "u1", day0, 70)
			if err := store.InsertDaily(ctx, first); err != nil {
				t.Fatalf("insert: %v", err)
			}

			got, err := store.LatestForDate(ctx, "u1", first.CalendarDate)
			if err != nil {
				t.Fatalf("latest for date: %v", err)
			}
			sameSnapshot(t, got, first)

			second := snapshot("s2", "u1", day0.Add(time.Hour), 90)
			if err := store.InsertDaily(ctx, second); !errors.Is(err, ErrConcurrentWriteLost) {
				t.Fatalf("expected ErrConcurrentWriteLost, got %v", err)
			}

			// Another user on the same day is independent.
			if err := store.InsertDaily(ctx, snapshot("s3", "u2", day0, 10)); err != nil {
				t.Fatalf("insert other user: %v", err)
			}

			history, err := store.History(ctx, "u1", "")
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(history) != 1 || history[0].ID != "s1" {
				t.Fatalf("expected only s1 persisted, got %d rows", len(history))
			}
		})
	}
}

func TestStore_ForcedAppendWins(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			if err := store.InsertDaily(ctx, snapshot("daily", "u1", day0, 60)); err != nil {
				t.Fatalf("insert: %v", err)
			}
			forced := snapshot("forced", "u1", day0.Add(2*time.Hour), 65)
			forced.Forced = true
			if err := store.Append(ctx, forced); err != nil {
				t.Fatalf("append: %v", err)
			}

			latest, err := store.Latest(ctx, "u1")
			if err != nil {
				t.Fatalf("latest: %v", err)
			}
			sameSnapshot(t, latest, forced)

			today, err := store.LatestForDate(ctx, "u1", forced.CalendarDate)
			if err != nil {
				t.Fatalf("latest for date: %v", err)
			}
			if today.ID != "forced" {
				t.Errorf("expected forced snapshot in effect, got %s", today.ID)
			}

			// Equal timestamps resolve to the later write.
			tie := snapshot("tie", "u1", day0.Add(2*time.Hour), 66)
			tie.Forced = true
			if err := store.Append(ctx, tie); err != nil {
				t.Fatalf("append tie: %v", err)
			}
			if latest, _ := store.Latest(ctx, "u1"); latest.ID != "tie" {
				t.Errorf("expected later write to win tie, got %s", latest.ID)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			if _, err := store.Latest(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
				t.Errorf("latest: expected ErrNotFound, got %v", err)
			}
			if _, err := store.LatestForDate(ctx, "nobody", "2026-04-01"); !errors.Is(err, ErrNotFound) {
				t.Errorf("latest for date: expected ErrNotFound, got %v", err)
			}
			history, err := store.History(ctx, "nobody", "")
			if err != nil || len(history) != 0 {
				t.Errorf("history: expected empty, got %d rows, err %v", len(history), err)
			}
		})
	}
}

func TestStore_HistoryAndDailySeries(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			// Days 0, 1 and 3 have daily rows; day 1 also has a forced recompute.
			for _, d := range []int{0, 1, 3} {
				at := day0.AddDate(0, 0, d)
				if err := store.InsertDaily(ctx, snapshot(fmt.Sprintf("d%d", d), "u1", at, float64(50+d))); err != nil {
					t.Fatalf("insert day %d: %v", d, err)
				}
			}
			forced := snapshot("d1-forced", "u1", day0.AddDate(0, 0, 1).Add(time.Hour), 80)
			forced.Forced = true
			if err := store.Append(ctx, forced); err != nil {
				t.Fatalf("append: %v", err)
			}

			history, err := store.History(ctx, "u1", "")
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			want := []string{"d3", "d1-forced", "d1", "d0"}
			if len(history) != len(want) {
				t.Fatalf("expected %d rows, got %d", len(want), len(history))
			}
			for i, id := range want {
				if history[i].ID != id {
					t.Errorf("history[%d]: got %s want %s", i, history[i].ID, id)
				}
			}

			since, err := store.History(ctx, "u1", "2026-04-02")
			if err != nil {
				t.Fatalf("history since: %v", err)
			}
			if len(since) != 3 {
				t.Errorf("expected 3 rows since 2026-04-02, got %d", len(since))
			}

			series, err := store.DailySeries(ctx, "u1", "2026-04-01", "2026-04-04")
			if err != nil {
				t.Fatalf("daily series: %v", err)
			}
			gotIDs := make([]string, len(series))
			for i, s := range series {
				gotIDs[i] = s.ID
			}
			if !reflect.DeepEqual(gotIDs, []string{"d0", "d1-forced", "d3"}) {
				t.Errorf("daily series: got %v", gotIDs)
			}
			sameSnapshot(t, series[1], forced)
		})
	}
}

func TestStore_ConcurrentInsertDaily(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			const writers = 16
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				wins   int
				losses int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := store.InsertDaily(ctx, snapshot(fmt.Sprintf("w%d", i), "u1", day0.Add(time.Duration(i)*time.Second), 70))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, ErrConcurrentWriteLost):
						losses++
					default:
						t.Errorf("writer %d: %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			if wins != 1 || losses != writers-1 {
				t.Fatalf("expected 1 win and %d losses, got %d and %d", writers-1, wins, losses)
			}
			history, err := store.History(ctx, "u1", "")
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(history) != 1 {
				t.Fatalf("expected one persisted snapshot, got %d", len(history))
			}
		})
	}
}

func TestMemoryStore_ErrorOnNextCall(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithCapacityHint(4))
	boom := fmt.Errorf("%w: disk on fire", ErrStoreUnavailable)

	store.ErrorOnNextCall(boom)
	if err := store.InsertDaily(ctx, snapshot("s1", "u1", day0, 50)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("failed insert must not persist")
	}

	// The injected error is consumed by a single call.
	if err := store.InsertDaily(ctx, snapshot("s1", "u1", day0, 50)); err != nil {
		t.Fatalf("insert after injection: %v", err)
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 snapshot, got %d", store.Count())
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.InsertDaily(ctx, snapshot("s1", "u1", day0, 50)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, _ := store.Latest(ctx, "u1")
	got.CategoryScores[0].Score = -1
	*got.MarkerScores[0].RawValue = -1

	again, _ := store.Latest(ctx, "u1")
	if again.CategoryScores[0].Score != 50 || *again.MarkerScores[0].RawValue != 50 {
		t.Fatalf("stored snapshot was mutated through a returned copy")
	}
}
