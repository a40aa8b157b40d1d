package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/uara-ai/healthscore/internal/domain/model"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const snapshotColumns = `seq, id, user_id, calendar_date, calculated_at_ns, overall_score,
	algorithm_version, source_whoop, source_profile, forced`

type snapshotRow struct {
	Seq              int64   `db:"seq"`
	ID               string  `db:"id"`
	UserID           string  `db:"user_id"`
	CalendarDate     string  `db:"calendar_date"`
	CalculatedAtNs   int64   `db:"calculated_at_ns"`
	OverallScore     float64 `db:"overall_score"`
	AlgorithmVersion string  `db:"algorithm_version"`
	SourceWhoop      bool    `db:"source_whoop"`
	SourceProfile    bool    `db:"source_profile"`
	Forced           bool    `db:"forced"`
}

type categoryRow struct {
	SnapshotID    string  `db:"snapshot_id"`
	Category      string  `db:"category"`
	Score         float64 `db:"score"`
	MarkerCount   int     `db:"marker_count"`
	CoveredWeight float64 `db:"covered_weight"`
}

type markerRow struct {
	SnapshotID string `db:"snapshot_id"`
	model.MarkerScore
}

// SQLStore implements Store on a relational database through sqlx.
// The daily uniqueness guarantee comes from the UNIQUE daily_key column.
type SQLStore struct {
	db           *sqlx.DB
	maxOpenConns int
}

// Open connects to driver/dsn, applies the schema and returns the store.
func Open(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, driver, err)
	}
	s := NewSQLStore(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection. The schema is not applied.
func NewSQLStore(db *sqlx.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{db: db}
	if db.DriverName() == DriverSQLite {
		s.maxOpenConns = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	return s
}

// Migrate creates the tables and indexes if they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.db.DriverName() == DriverPostgres {
		schema = schemaPostgres
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: run migrations: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// InsertDaily implements Store.
func (s *SQLStore) InsertDaily(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe("insert_daily", start, err) }(time.Now())
	key := DailyKey(snap.UserID, snap.CalendarDate)
	return s.insert(ctx, snap, &key)
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe("append", start, err) }(time.Now())
	return s.insert(ctx, snap, nil)
}

func (s *SQLStore) insert(ctx context.Context, snap model.Snapshot, dailyKey *string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO health_score_snapshots (id, user_id, calendar_date, calculated_at_ns, overall_score,
			algorithm_version, source_whoop, source_profile, forced, daily_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (daily_key) DO NOTHING
	`), snap.ID, snap.UserID, snap.CalendarDate, snap.CalculatedAt.UnixNano(), snap.OverallScore,
		snap.AlgorithmVersion, snap.SourceFlags.Whoop, snap.SourceFlags.Profile, snap.Forced, dailyKey)
	if err != nil {
		return unavailable("insert snapshot "+snap.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("insert snapshot "+snap.ID, err)
	}
	if n == 0 {
		return ErrConcurrentWriteLost
	}

	for i, cs := range snap.CategoryScores {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO health_category_scores (snapshot_id, position, category, score, marker_count, covered_weight)
			VALUES (?, ?, ?, ?, ?, ?)
		`), snap.ID, i, string(cs.Category), cs.Score, cs.MarkerCount, cs.CoveredWeight); err != nil {
			return unavailable("insert category score", err)
		}
	}
	for i, ms := range snap.MarkerScores {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO health_marker_scores (snapshot_id, position, marker_id, category, normalized_value, raw_value)
			VALUES (?, ?, ?, ?, ?, ?)
		`), snap.ID, i, string(ms.MarkerID), string(ms.Category), ms.NormalizedValue, ms.RawValue); err != nil {
			return unavailable("insert marker score", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit snapshot "+snap.ID, err)
	}
	return nil
}

// Latest implements Store.
func (s *SQLStore) Latest(ctx context.Context, userID string) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe("latest", start, err) }(time.Now())
	return s.one(ctx, `SELECT `+snapshotColumns+` FROM health_score_snapshots
		WHERE user_id = ?
		ORDER BY calculated_at_ns DESC, seq DESC LIMIT 1`, userID)
}

// LatestForDate implements Store.
func (s *SQLStore) LatestForDate(ctx context.Context, userID, date string) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe("latest_for_date", start, err) }(time.Now())
	return s.one(ctx, `SELECT `+snapshotColumns+` FROM health_score_snapshots
		WHERE user_id = ? AND calendar_date = ?
		ORDER BY calculated_at_ns DESC, seq DESC LIMIT 1`, userID, date)
}

func (s *SQLStore) one(ctx context.Context, query string, args ...any) (model.Snapshot, error) {
	var row snapshotRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Snapshot{}, ErrNotFound
		}
		return model.Snapshot{}, unavailable("query snapshot", err)
	}
	out, err := s.hydrate(ctx, []snapshotRow{row})
	if err != nil {
		return model.Snapshot{}, err
	}
	return out[0], nil
}

// History implements Store.
func (s *SQLStore) History(ctx context.Context, userID, sinceDate string) (out []model.Snapshot, err error) {
	defer func(start time.Time) { observe("history", start, err) }(time.Now())
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+snapshotColumns+` FROM health_score_snapshots
		WHERE user_id = ? AND calendar_date >= ?
		ORDER BY calculated_at_ns DESC, seq DESC`), userID, sinceDate); err != nil {
		return nil, unavailable("query history", err)
	}
	return s.hydrate(ctx, rows)
}

// DailySeries implements Store.
func (s *SQLStore) DailySeries(ctx context.Context, userID, fromDate, toDate string) (out []model.Snapshot, err error) {
	defer func(start time.Time) { observe("daily_series", start, err) }(time.Now())
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+snapshotColumns+` FROM health_score_snapshots
		WHERE user_id = ? AND calendar_date >= ? AND calendar_date <= ?
		ORDER BY calendar_date ASC, calculated_at_ns DESC, seq DESC`), userID, fromDate, toDate); err != nil {
		return nil, unavailable("query daily series", err)
	}
	inEffect := rows[:0]
	for _, r := range rows {
		if len(inEffect) > 0 && inEffect[len(inEffect)-1].CalendarDate == r.CalendarDate {
			continue
		}
		inEffect = append(inEffect, r)
	}
	return s.hydrate(ctx, inEffect)
}

// hydrate loads the category and marker scores of rows, preserving row order.
func (s *SQLStore) hydrate(ctx context.Context, rows []snapshotRow) ([]model.Snapshot, error) {
	out := make([]model.Snapshot, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		index[r.ID] = i
		out[i] = model.Snapshot{
			ID:               r.ID,
			UserID:           r.UserID,
			CalculatedAt:     time.Unix(0, r.CalculatedAtNs).UTC(),
			CalendarDate:     r.CalendarDate,
			OverallScore:     r.OverallScore,
			AlgorithmVersion: r.AlgorithmVersion,
			SourceFlags:      model.SourceFlags{Whoop: r.SourceWhoop, Profile: r.SourceProfile},
			Forced:           r.Forced,
		}
	}

	query, args, err := sqlx.In(`SELECT snapshot_id, category, score, marker_count, covered_weight
		FROM health_category_scores WHERE snapshot_id IN (?) ORDER BY snapshot_id, position`, ids)
	if err != nil {
		return nil, unavailable("build category query", err)
	}
	var cats []categoryRow
	if err := s.db.SelectContext(ctx, &cats, s.db.Rebind(query), args...); err != nil {
		return nil, unavailable("query category scores", err)
	}
	for _, c := range cats {
		i := index[c.SnapshotID]
		out[i].CategoryScores = append(out[i].CategoryScores, model.CategoryScore{
			Category:      model.Category(c.Category),
			Score:         c.Score,
			MarkerCount:   c.MarkerCount,
			CoveredWeight: c.CoveredWeight,
		})
	}

	query, args, err = sqlx.In(`SELECT snapshot_id, marker_id, category, normalized_value, raw_value
		FROM health_marker_scores WHERE snapshot_id IN (?) ORDER BY snapshot_id, position`, ids)
	if err != nil {
		return nil, unavailable("build marker query", err)
	}
	var markers []markerRow
	if err := s.db.SelectContext(ctx, &markers, s.db.Rebind(query), args...); err != nil {
		return nil, unavailable("query marker scores", err)
	}
	for _, m := range markers {
		i := index[m.SnapshotID]
		out[i].MarkerScores = append(out[i].MarkerScores, m.MarkerScore)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
