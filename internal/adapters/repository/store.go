// Package repository persists health score snapshots.
package repository

import (
	"context"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Store provides read/write access to persisted snapshots. Snapshots are
// append-only. For every (user, calendar date) the in-effect snapshot is the
// one with the latest CalculatedAt; ties go to the later write.
type Store interface {
	// InsertDaily persists snap only if no daily snapshot exists yet for its
	// (user, calendar date). It returns ErrConcurrentWriteLost when the key is
	// already taken; the caller re-reads the winner.
	InsertDaily(ctx context.Context, snap model.Snapshot) error

	// Append persists snap unconditionally. Used by forced recalculation.
	Append(ctx context.Context, snap model.Snapshot) error

	// Latest returns the most recent snapshot of a user.
	// Returns ErrNotFound if the user has none.
	Latest(ctx context.Context, userID string) (model.Snapshot, error)

	// LatestForDate returns the in-effect snapshot for a calendar date.
	// Returns ErrNotFound if the date has none.
	LatestForDate(ctx context.Context, userID, date string) (model.Snapshot, error)

	// History returns every snapshot with a calendar date on or after
	// sinceDate, newest first. An empty sinceDate returns all of them.
	History(ctx context.Context, userID, sinceDate string) ([]model.Snapshot, error)

	// DailySeries returns the in-effect snapshot of each calendar date in
	// [fromDate, toDate] that has one, oldest date first.
	DailySeries(ctx context.Context, userID, fromDate, toDate string) ([]model.Snapshot, error)

	// Close releases the store's resources.
	Close() error
}

// DailyKey is the uniqueness key guarding one non-forced snapshot per user and day.
func DailyKey(userID, date string) string {
	return userID + "|" + date
}

// newer reports whether a is in effect over b.
func newer(a, b model.Snapshot) bool {
	return a.CalculatedAt.After(b.CalculatedAt)
}
