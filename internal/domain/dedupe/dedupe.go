// Package dedupe guarantees at most one non-forced health score snapshot per
// user and calendar day.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uara-ai/healthscore/internal/adapters/repository"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/pkg/logger"
	"github.com/uara-ai/healthscore/pkg/metrics"
)

// Outcome describes how a ComputeAndPersist call was resolved.
type Outcome string

const (
	// OutcomeCreated means this call computed and persisted the day's snapshot.
	OutcomeCreated Outcome = "created"
	// OutcomeShortCircuited means a snapshot for today already existed.
	OutcomeShortCircuited Outcome = "short_circuited"
	// OutcomeRaceLost means a concurrent call persisted first; its snapshot is returned.
	OutcomeRaceLost Outcome = "race_lost"
	// OutcomeForced means a forced recalculation appended a new snapshot.
	OutcomeForced Outcome = "forced"
)

// Recalculated reports whether the outcome persisted a new snapshot.
func (o Outcome) Recalculated() bool {
	return o == OutcomeCreated || o == OutcomeForced
}

// ComputeFunc produces the scores of a snapshot. Identity and timing fields
// are filled in by the guard.
type ComputeFunc func() (model.Snapshot, error)

// Store is the part of the snapshot store the guard writes through.
type Store interface {
	InsertDaily(ctx context.Context, snap model.Snapshot) error
	Append(ctx context.Context, snap model.Snapshot) error
	LatestForDate(ctx context.Context, userID, date string) (model.Snapshot, error)
}

// Guard wraps snapshot computation with per-day idempotence.
type Guard interface {
	// ComputeAndPersist returns today's in-effect snapshot for userID,
	// computing and persisting one first if needed. With force, a new
	// snapshot is always computed and appended. The boolean reports whether
	// this call persisted a new snapshot.
	ComputeAndPersist(ctx context.Context, userID string, compute ComputeFunc, force bool) (model.Snapshot, bool, error)

	// Today returns the calendar date the guard currently partitions on.
	Today() string
}

type guard struct {
	store  Store
	clock  model.Clock
	loc    *time.Location
	newID  func() string
	logger logger.Logger
}

// NewGuard creates a guard writing to store.
func NewGuard(store Store, opts ...Option) Guard {
	g := &guard{
		store:  store,
		clock:  model.SystemClock{},
		loc:    time.UTC,
		newID:  uuid.NewString,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *guard) Today() string {
	return model.CalendarDate(g.clock.Now(), g.loc)
}

func (g *guard) ComputeAndPersist(ctx context.Context, userID string, compute ComputeFunc, force bool) (model.Snapshot, bool, error) {
	now := g.clock.Now()
	today := model.CalendarDate(now, g.loc)

	if !force {
		existing, err := g.store.LatestForDate(ctx, userID, today)
		switch {
		case err == nil:
			g.done(ctx, OutcomeShortCircuited, existing)
			return existing, false, nil
		case !errors.Is(err, repository.ErrNotFound):
			return model.Snapshot{}, false, storeError("read today's snapshot", err)
		}
	}

	snap, err := compute()
	if err != nil {
		return model.Snapshot{}, false, err
	}
	snap.ID = g.newID()
	snap.UserID = userID
	snap.CalculatedAt = now
	snap.CalendarDate = today
	snap.Forced = force

	if force {
		if err := g.store.Append(ctx, snap); err != nil {
			return model.Snapshot{}, false, storeError("append forced snapshot", err)
		}
		g.done(ctx, OutcomeForced, snap)
		return snap, true, nil
	}

	err = g.store.InsertDaily(ctx, snap)
	switch {
	case err == nil:
		g.done(ctx, OutcomeCreated, snap)
		return snap, true, nil
	case errors.Is(err, repository.ErrConcurrentWriteLost):
		winner, rerr := g.store.LatestForDate(ctx, userID, today)
		if rerr != nil {
			return model.Snapshot{}, false, storeError("read winning snapshot", rerr)
		}
		g.done(ctx, OutcomeRaceLost, winner)
		return winner, false, nil
	default:
		return model.Snapshot{}, false, storeError("insert daily snapshot", err)
	}
}

func (g *guard) done(ctx context.Context, outcome Outcome, snap model.Snapshot) {
	metrics.RecordCalculation(string(outcome))
	g.logger.Debug(ctx, "daily snapshot resolved",
		logger.String("outcome", string(outcome)),
		logger.String("user_id", snap.UserID),
		logger.String("snapshot_id", snap.ID),
		logger.String("calendar_date", snap.CalendarDate))
}

// storeError makes every store failure match repository.ErrStoreUnavailable.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}
