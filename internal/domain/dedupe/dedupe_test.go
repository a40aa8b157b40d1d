package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/uara-ai/healthscore/internal/adapters/repository"
	dedupe "github.com/uara-ai/healthscore/internal/domain/dedupe"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
)

type mutableClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func counting(calls *atomic.Int32, score float64) dedupe.ComputeFunc {
	return func() (model.Snapshot, error) {
		calls.Add(1)
		return model.Snapshot{
			OverallScore:     score,
			AlgorithmVersion: "v1",
			CategoryScores:   []model.CategoryScore{{Category: model.CategorySleep, Score: score, MarkerCount: 1, CoveredWeight: 1}},
		}, nil
	}
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("snap-%d", n.Add(1)) }
}

// raceStore simulates losing the insert to a concurrent writer.
type raceStore struct {
	winner model.Snapshot
	reads  int
}

func (s *raceStore) InsertDaily(context.Context, model.Snapshot) error {
	return repository.ErrConcurrentWriteLost
}

func (s *raceStore) Append(context.Context, model.Snapshot) error { return nil }

func (s *raceStore) LatestForDate(context.Context, string, string) (model.Snapshot, error) {
	s.reads++
	if s.reads == 1 {
		return model.Snapshot{}, repository.ErrNotFound
	}
	return s.winner, nil
}

func TestGuard_ComputeAndPersist(t *testing.T) {
	Convey("Given a guard over an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		clock := &mutableClock{t: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
		g := dedupe.NewGuard(store, dedupe.WithClock(clock), dedupe.WithIDGenerator(sequentialIDs()))
		var calls atomic.Int32

		Convey("When the first calculation of the day runs", func() {
			snap, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 70), false)

			Convey("Then a snapshot is created with identity and timing filled in", func() {
				So(err, ShouldBeNil)
				So(recalculated, ShouldBeTrue)
				So(snap.ID, ShouldEqual, "snap-1")
				So(snap.UserID, ShouldEqual, "u1")
				So(snap.CalendarDate, ShouldEqual, "2026-05-10")
				So(snap.CalculatedAt, ShouldEqual, clock.Now())
				So(snap.Forced, ShouldBeFalse)
				So(store.Count(), ShouldEqual, 1)
			})

			Convey("And a second call the same day", func() {
				clock.Advance(3 * time.Hour)
				again, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 99), false)

				Convey("Then it returns the stored snapshot without computing", func() {
					So(err, ShouldBeNil)
					So(recalculated, ShouldBeFalse)
					So(again.ID, ShouldEqual, snap.ID)
					So(again.OverallScore, ShouldEqual, 70)
					So(calls.Load(), ShouldEqual, 1)
					So(store.Count(), ShouldEqual, 1)
				})
			})

			Convey("And a forced call the same day", func() {
				clock.Advance(time.Hour)
				forced, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 80), true)

				Convey("Then a new snapshot is appended and takes effect", func() {
					So(err, ShouldBeNil)
					So(recalculated, ShouldBeTrue)
					So(forced.ID, ShouldNotEqual, snap.ID)
					So(forced.Forced, ShouldBeTrue)
					So(store.Count(), ShouldEqual, 2)

					latest, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 10), false)
					So(err, ShouldBeNil)
					So(recalculated, ShouldBeFalse)
					So(latest.ID, ShouldEqual, forced.ID)
				})
			})

			Convey("And the next day starts", func() {
				clock.Advance(24 * time.Hour)
				next, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 60), false)

				Convey("Then a new daily snapshot is created", func() {
					So(err, ShouldBeNil)
					So(recalculated, ShouldBeTrue)
					So(next.CalendarDate, ShouldEqual, "2026-05-11")
					So(store.Count(), ShouldEqual, 2)
				})
			})
		})

		Convey("When there is no scorable data", func() {
			_, recalculated, err := g.ComputeAndPersist(ctx, "u1", func() (model.Snapshot, error) {
				return model.Snapshot{}, scoring.ErrNoScorableData
			}, false)

			Convey("Then the error propagates and nothing is persisted", func() {
				So(errors.Is(err, scoring.ErrNoScorableData), ShouldBeTrue)
				So(recalculated, ShouldBeFalse)
				So(store.Count(), ShouldEqual, 0)
			})
		})

		Convey("When the store fails", func() {
			store.ErrorOnNextCall(errors.New("connection refused"))
			_, _, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 70), false)

			Convey("Then the error is reported as store unavailable without retry", func() {
				So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When many calls race for the same day", func() {
			const callers = 32
			ids := make([]string, callers)
			var created atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					snap, recalculated, err := g.ComputeAndPersist(ctx, "u1", counting(&calls, 70), false)
					if err == nil {
						ids[i] = snap.ID
					}
					if recalculated {
						created.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one snapshot is persisted and every caller sees it", func() {
				So(store.Count(), ShouldEqual, 1)
				So(created.Load(), ShouldEqual, 1)
				for _, id := range ids {
					So(id, ShouldEqual, ids[0])
				}
				So(ids[0], ShouldNotBeEmpty)
			})
		})
	})

	Convey("Given a guard configured for a zone ahead of UTC", t, func() {
		store := repository.NewMemoryStore()
		clock := model.FixedClock{T: time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC)}
		g := dedupe.NewGuard(store, dedupe.WithClock(clock), dedupe.WithLocation(time.FixedZone("AEST", 10*60*60)))
		var calls atomic.Int32

		Convey("Then the calendar day follows the configured zone", func() {
			snap, _, err := g.ComputeAndPersist(context.Background(), "u1", counting(&calls, 70), false)
			So(err, ShouldBeNil)
			So(snap.CalendarDate, ShouldEqual, "2026-05-11")
			So(g.Today(), ShouldEqual, "2026-05-11")
		})
	})

	Convey("Given a store where a concurrent writer wins the insert", t, func() {
		winner := model.Snapshot{ID: "winner", UserID: "u1", CalendarDate: "2026-05-10"}
		store := &raceStore{winner: winner}
		g := dedupe.NewGuard(store, dedupe.WithClock(model.FixedClock{T: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}))
		var calls atomic.Int32

		Convey("Then the winner is returned and the race is not surfaced", func() {
			snap, recalculated, err := g.ComputeAndPersist(context.Background(), "u1", counting(&calls, 70), false)
			So(err, ShouldBeNil)
			So(recalculated, ShouldBeFalse)
			So(snap.ID, ShouldEqual, "winner")
			So(store.reads, ShouldEqual, 2)
		})
	})
}

func TestOutcome_Recalculated(t *testing.T) {
	Convey("Given the dedup outcomes", t, func() {
		So(dedupe.OutcomeCreated.Recalculated(), ShouldBeTrue)
		So(dedupe.OutcomeForced.Recalculated(), ShouldBeTrue)
		So(dedupe.OutcomeShortCircuited.Recalculated(), ShouldBeFalse)
		So(dedupe.OutcomeRaceLost.Recalculated(), ShouldBeFalse)
	})
}
