// Package service wires the scoring engine, the dedup guard, the store and
// the invalidation publisher into the operations exposed to callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uara-ai/healthscore/internal/adapters/mq/invalidation"
	"github.com/uara-ai/healthscore/internal/adapters/repository"
	"github.com/uara-ai/healthscore/internal/domain/dedupe"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
	"github.com/uara-ai/healthscore/internal/domain/trend"
	"github.com/uara-ai/healthscore/internal/domain/types"
	"github.com/uara-ai/healthscore/pkg/logger"
	"github.com/uara-ai/healthscore/pkg/metrics"
)

// DefaultAlgorithmVersion is attached to snapshots when nothing else is configured.
const DefaultAlgorithmVersion = "v1"

// OverallMetricID names the overall score in trend results.
const OverallMetricID = "overall_score"

// categoryFamily maps categories to their trend threshold family.
var categoryFamily = map[model.Category]model.Family{ //nolint:gochecknoglobals // fixed lookup table
	model.CategoryRecovery:        model.FamilyRecovery,
	model.CategorySleep:           model.FamilySleep,
	model.CategoryMovement:        model.FamilyStrain,
	model.CategoryBodyComposition: model.FamilyBody,
}

// Service implements the health score operations. It keeps no mutable
// state between calls; everything lives in the store.
type Service struct {
	store     repository.Store
	scorer    *scoring.Scorer
	analyzer  *trend.Analyzer
	publisher invalidation.Publisher
	guard     dedupe.Guard

	clock            model.Clock
	loc              *time.Location
	algorithmVersion string
	windowDays       int
	newID            func() string

	logger logger.Logger
}

// New constructs a Service on store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		scorer:           scoring.NewScorer(),
		analyzer:         trend.NewAnalyzer(),
		publisher:        invalidation.NewLogPublisher(nil),
		clock:            model.SystemClock{},
		loc:              time.UTC,
		algorithmVersion: DefaultAlgorithmVersion,
		windowDays:       trend.DefaultWindowDays,
		logger:           logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	guardOpts := []dedupe.Option{
		dedupe.WithClock(s.clock),
		dedupe.WithLocation(s.loc),
		dedupe.WithLogger(s.logger),
	}
	if s.newID != nil {
		guardOpts = append(guardOpts, dedupe.WithIDGenerator(s.newID))
	}
	s.guard = dedupe.NewGuard(store, guardOpts...)

	return s
}

// Close releases the store and, when it holds resources, the publisher.
func (s *Service) Close() error {
	var errs []error
	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// Catalog returns the marker definitions the service scores against.
func (s *Service) Catalog() []model.MarkerDefinition {
	return s.scorer.Catalog().Definitions()
}

// CalculateHealthScore scores values for userID and persists the result
// subject to the daily dedup rules. Unknown marker keys are reported in
// IgnoredMarkers and never scored.
func (s *Service) CalculateHealthScore(ctx context.Context, userID string, values model.MarkerValues, algorithmVersion string, force bool) (types.Calculation, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCalculationLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	userID, err := s.user(userID)
	if err != nil {
		return types.Calculation{}, err
	}
	if algorithmVersion == "" {
		algorithmVersion = s.algorithmVersion
	}

	readings, ignored := s.scorer.Catalog().Resolve(values, s.clock.Now())
	if len(ignored) > 0 {
		metrics.RecordIgnoredMarkers(len(ignored))
		s.logger.Warn(ctx, "ignoring unknown markers",
			logger.String("user_id", userID),
			logger.Any("markers", ignored))
	}

	compute := func() (model.Snapshot, error) {
		res, err := s.scorer.Score(readings, algorithmVersion)
		if err != nil {
			return model.Snapshot{}, err
		}
		return model.Snapshot{
			OverallScore:     res.OverallScore,
			CategoryScores:   res.Categories,
			MarkerScores:     res.Markers,
			AlgorithmVersion: res.AlgorithmVersion,
			SourceFlags:      res.SourceFlags,
		}, nil
	}

	snap, recalculated, err := s.guard.ComputeAndPersist(ctx, userID, compute, force)
	if err != nil {
		s.fail(ctx, "calculate", userID, err)
		return types.Calculation{}, err
	}

	if recalculated {
		metrics.UpdateLastOverallScore(snap.OverallScore)
		metrics.RecordCategoriesScored(len(snap.CategoryScores))
		s.invalidate(ctx, snap)
		s.logger.Info(ctx, "health score persisted",
			logger.String("user_id", userID),
			logger.String("snapshot_id", snap.ID),
			logger.Float64("overall_score", snap.OverallScore),
			logger.Bool("forced", snap.Forced),
			logger.String("algorithm_version", snap.AlgorithmVersion))
	}

	return types.Calculation{Snapshot: snap, Recalculated: recalculated, IgnoredMarkers: ignored}, nil
}

// invalidate signals downstream caches. The snapshot is already committed,
// so a failed publish is logged and counted but not returned.
func (s *Service) invalidate(ctx context.Context, snap model.Snapshot) {
	sig := invalidation.Signal{
		UserID:     snap.UserID,
		SnapshotID: snap.ID,
		Topics:     invalidation.DefaultTopics(),
		At:         s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, sig); err != nil {
		metrics.RecordInvalidation("failed")
		s.logger.Warn(ctx, "invalidation publish failed",
			logger.String("user_id", snap.UserID),
			logger.String("snapshot_id", snap.ID),
			logger.Error(err))
		return
	}
	metrics.RecordInvalidation("ok")
}

// GetLatestHealthScore returns the user's most recent snapshot.
func (s *Service) GetLatestHealthScore(ctx context.Context, userID string) (model.Snapshot, error) {
	userID, err := s.user(userID)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := s.store.Latest(ctx, userID)
	if err != nil {
		s.fail(ctx, "latest", userID, err)
	}
	return snap, err
}

// GetTodaysHealthScore returns the in-effect snapshot for the current calendar day.
func (s *Service) GetTodaysHealthScore(ctx context.Context, userID string) (model.Snapshot, error) {
	userID, err := s.user(userID)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := s.store.LatestForDate(ctx, userID, s.guard.Today())
	if err != nil {
		s.fail(ctx, "today", userID, err)
	}
	return snap, err
}

// GetHealthScoreHistory returns snapshots calculated on or after the
// calendar day of since, newest first. A zero since returns everything.
func (s *Service) GetHealthScoreHistory(ctx context.Context, userID string, since time.Time) ([]model.Snapshot, error) {
	userID, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	var sinceDate string
	if !since.IsZero() {
		sinceDate = model.CalendarDate(since, s.loc)
	}
	history, err := s.store.History(ctx, userID, sinceDate)
	if err != nil {
		s.fail(ctx, "history", userID, err)
		return nil, err
	}
	return history, nil
}

// GetMarkerScoresByCategory breaks the latest snapshot down by category.
// A nil category returns every category in composition order.
func (s *Service) GetMarkerScoresByCategory(ctx context.Context, userID string, category *model.Category) ([]types.CategoryBreakdown, error) {
	userID, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	categories := model.Categories()
	if category != nil {
		if !category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, *category)
		}
		categories = []model.Category{*category}
	}

	snap, err := s.store.Latest(ctx, userID)
	if err != nil {
		s.fail(ctx, "categories", userID, err)
		return nil, err
	}

	out := make([]types.CategoryBreakdown, 0, len(categories))
	for _, c := range categories {
		out = append(out, types.Breakdown(snap, c))
	}
	return out, nil
}

// GetMarkerScoreTrends computes a trend per marker over the raw values of
// each day's in-effect snapshot. An empty markerIDs covers the whole catalog.
func (s *Service) GetMarkerScoreTrends(ctx context.Context, userID string, markerIDs []model.MarkerID, windowDays int) ([]model.TrendResult, error) {
	userID, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	catalog := s.scorer.Catalog()
	defs := make([]model.MarkerDefinition, 0, len(markerIDs))
	if len(markerIDs) == 0 {
		defs = catalog.Definitions()
	}
	for _, id := range markerIDs {
		d, ok := catalog.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown marker %q", ErrInvalidArgument, id)
		}
		defs = append(defs, d)
	}

	dates, byDate, err := s.daily(ctx, userID, windowDays)
	if err != nil {
		return nil, err
	}

	series := make([]trend.Series, 0, len(defs))
	for _, d := range defs {
		points := make([]trend.Point, len(dates))
		for i, date := range dates {
			points[i] = trend.Point{Date: date}
			if snap, ok := byDate[date]; ok {
				if ms, ok := snap.Marker(d.ID); ok {
					points[i].Value = ms.RawValue
				}
			}
		}
		series = append(series, trend.Series{MetricID: string(d.ID), Family: d.Family, Points: points})
	}
	return s.batch(series, windowDays), nil
}

// GetCategoryPerformanceSummary returns every category's current score and
// its trend over the window.
func (s *Service) GetCategoryPerformanceSummary(ctx context.Context, userID string, windowDays int) ([]types.CategoryPerformance, error) {
	userID, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	latest, err := s.store.Latest(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		s.fail(ctx, "summary", userID, err)
		return nil, err
	}

	dates, byDate, err := s.daily(ctx, userID, windowDays)
	if err != nil {
		return nil, err
	}

	categories := model.Categories()
	series := make([]trend.Series, 0, len(categories))
	for _, c := range categories {
		points := make([]trend.Point, len(dates))
		for i, date := range dates {
			points[i] = trend.Point{Date: date}
			if cs, ok := byDate[date].Category(c); ok {
				points[i].Value = model.Float(cs.Score)
			}
		}
		series = append(series, trend.Series{MetricID: string(c), Family: categoryFamily[c], Points: points})
	}
	trends := s.batch(series, windowDays)

	out := make([]types.CategoryPerformance, len(categories))
	for i, c := range categories {
		out[i] = types.CategoryPerformance{Category: c, Trend: trends[i]}
		if cs, ok := latest.Category(c); ok {
			out[i].CurrentScore = model.Float(cs.Score)
		}
	}
	return out, nil
}

// GetOverallScoreTrend computes the trend of the overall score.
func (s *Service) GetOverallScoreTrend(ctx context.Context, userID string, windowDays int) (model.TrendResult, error) {
	userID, err := s.user(userID)
	if err != nil {
		return model.TrendResult{}, err
	}
	windowDays = s.window(windowDays)

	dates, byDate, err := s.daily(ctx, userID, windowDays)
	if err != nil {
		return model.TrendResult{}, err
	}
	points := make([]trend.Point, len(dates))
	for i, date := range dates {
		points[i] = trend.Point{Date: date}
		if snap, ok := byDate[date]; ok {
			points[i].Value = model.Float(snap.OverallScore)
		}
	}
	return s.batch([]trend.Series{{MetricID: OverallMetricID, Family: model.FamilyScore, Points: points}}, windowDays)[0], nil
}

// daily loads the in-effect snapshot of each day in the window ending today.
func (s *Service) daily(ctx context.Context, userID string, windowDays int) ([]string, map[string]model.Snapshot, error) {
	dates := model.DateRange(s.clock.Now(), windowDays, s.loc)
	snaps, err := s.store.DailySeries(ctx, userID, dates[0], dates[len(dates)-1])
	if err != nil {
		s.fail(ctx, "daily_series", userID, err)
		return nil, nil, err
	}
	byDate := make(map[string]model.Snapshot, len(snaps))
	for _, sn := range snaps {
		byDate[sn.CalendarDate] = sn
	}
	return dates, byDate, nil
}

func (s *Service) batch(series []trend.Series, windowDays int) []model.TrendResult {
	results := s.analyzer.Batch(series, windowDays)
	for _, r := range results {
		metrics.RecordTrendDirection(string(r.Direction))
	}
	return results
}

func (s *Service) window(days int) int {
	if days <= 0 {
		return s.windowDays
	}
	return days
}

func (s *Service) user(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrNotAuthenticated
	}
	return userID, nil
}

func (s *Service) fail(ctx context.Context, op, userID string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return
	case errors.Is(err, scoring.ErrNoScorableData):
		metrics.RecordNoScorableData()
		metrics.RecordErrorByComponent("service", "no_scorable_data")
		s.logger.Info(ctx, "no scorable data", logger.String("user_id", userID))
	default:
		metrics.RecordErrorByComponent("service", "store_unavailable")
		s.logger.Error(ctx, "health score operation failed",
			logger.String("operation", op),
			logger.String("user_id", userID),
			logger.Error(err))
	}
}
