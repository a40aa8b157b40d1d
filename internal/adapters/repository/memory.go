package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/pkg/metrics"
)

// MemoryStore is an in-memory Store guarded by a single RWMutex.
// It is used by tests, the CLI simulator and single-process deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	byUser    map[string][]model.Snapshot
	dailyKeys map[string]string
	count     int

	// failNext, when set, is returned by the next store call instead of
	// running it. Used to exercise store failure paths.
	failMu   sync.Mutex
	failNext error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byUser:    make(map[string][]model.Snapshot),
		dailyKeys: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrorOnNextCall makes the next store call fail with err.
func (s *MemoryStore) ErrorOnNextCall(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) injected() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failNext
	s.failNext = nil
	return err
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConcurrentWriteLost) {
		metrics.RecordStoreError(op)
	}
}

// InsertDaily implements Store.
func (s *MemoryStore) InsertDaily(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe("insert_daily", start, err) }(time.Now())
	if err := s.injected(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := DailyKey(snap.UserID, snap.CalendarDate)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.dailyKeys[key]; taken {
		return ErrConcurrentWriteLost
	}
	s.dailyKeys[key] = snap.ID
	s.appendLocked(snap)
	return nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe("append", start, err) }(time.Now())
	if err := s.injected(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(snap)
	return nil
}

func (s *MemoryStore) appendLocked(snap model.Snapshot) {
	s.byUser[snap.UserID] = append(s.byUser[snap.UserID], clone(snap))
	s.count++
	metrics.UpdateStoredSnapshots(s.count)
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context, userID string) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe("latest", start, err) }(time.Now())
	return s.pick(userID, func(model.Snapshot) bool { return true })
}

// LatestForDate implements Store.
func (s *MemoryStore) LatestForDate(ctx context.Context, userID, date string) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe("latest_for_date", start, err) }(time.Now())
	return s.pick(userID, func(sn model.Snapshot) bool { return sn.CalendarDate == date })
}

func (s *MemoryStore) pick(userID string, match func(model.Snapshot) bool) (model.Snapshot, error) {
	if err := s.injected(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  model.Snapshot
		found bool
	)
	// Later writes win ties, so scan in write order with >=.
	for _, sn := range s.byUser[userID] {
		if !match(sn) {
			continue
		}
		if !found || !newer(best, sn) {
			best = sn
			found = true
		}
	}
	if !found {
		return model.Snapshot{}, ErrNotFound
	}
	return clone(best), nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context, userID, sinceDate string) (out []model.Snapshot, err error) {
	defer func(start time.Time) { observe("history", start, err) }(time.Now())
	if err := s.injected(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := s.byUser[userID]
	out = make([]model.Snapshot, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if sinceDate == "" || rows[i].CalendarDate >= sinceDate {
			out = append(out, clone(rows[i]))
		}
	}
	s.mu.RUnlock()

	// Rows are newest-written first; the stable sort keeps that order for equal times.
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

// DailySeries implements Store.
func (s *MemoryStore) DailySeries(ctx context.Context, userID, fromDate, toDate string) (out []model.Snapshot, err error) {
	defer func(start time.Time) { observe("daily_series", start, err) }(time.Now())
	if err := s.injected(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	byDate := make(map[string]model.Snapshot)
	for _, sn := range s.byUser[userID] {
		if sn.CalendarDate < fromDate || sn.CalendarDate > toDate {
			continue
		}
		if cur, ok := byDate[sn.CalendarDate]; !ok || !newer(cur, sn) {
			byDate[sn.CalendarDate] = sn
		}
	}
	s.mu.RUnlock()

	out = make([]model.Snapshot, 0, len(byDate))
	for _, sn := range byDate {
		out = append(out, clone(sn))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalendarDate < out[j].CalendarDate })
	return out, nil
}

// Count returns the number of stored snapshots across all users.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func clone(sn model.Snapshot) model.Snapshot {
	out := sn
	out.CategoryScores = append([]model.CategoryScore(nil), sn.CategoryScores...)
	if sn.MarkerScores == nil {
		return out
	}
	out.MarkerScores = make([]model.MarkerScore, len(sn.MarkerScores))
	for i, ms := range sn.MarkerScores {
		out.MarkerScores[i] = ms
		if ms.NormalizedValue != nil {
			out.MarkerScores[i].NormalizedValue = model.Float(*ms.NormalizedValue)
		}
		if ms.RawValue != nil {
			out.MarkerScores[i].RawValue = model.Float(*ms.RawValue)
		}
	}
	return out
}
