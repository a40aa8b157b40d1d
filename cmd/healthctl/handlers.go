package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	service "github.com/uara-ai/healthscore/internal/app"
	"github.com/uara-ai/healthscore/internal/config"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/types"
	"github.com/uara-ai/healthscore/internal/simulate"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// simulationHour is the local time of day of each simulated calculation.
const simulationHour = 7

type simulateParams struct {
	users   int
	days    int
	seed    uint64
	workers int
	missing float64
	window  int
}

// openService loads the config and builds the service. Logs go to stderr
// so stdout stays machine readable.
func openService(ctx context.Context, g *globalFlags, opts ...service.Option) (*service.Service, *config.Config, error) {
	cfg, err := config.LoadFile(g.cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	svc, err := service.FromConfig(ctx, cfg, logger.Get(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open service: %w", err)
	}
	return svc, cfg, nil
}

func userError(err error) error {
	if errors.Is(err, service.ErrNotAuthenticated) {
		return fmt.Errorf("%w: set --user or HEALTHSCORE_USER", err)
	}
	return err
}

func runScore(ctx context.Context, w io.Writer, g *globalFlags, rawMarkers []string, version string, force bool) error {
	values, err := parseMarkers(rawMarkers)
	if err != nil {
		return err
	}
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.CalculateHealthScore(ctx, g.user, values, version, force)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, res)
	}
	status := "stored"
	if !res.Recalculated {
		status = "existing"
	}
	fmt.Fprintf(w, "%s snapshot %s\n", status, res.Snapshot.ID)
	if len(res.IgnoredMarkers) > 0 {
		fmt.Fprintf(w, "ignored markers: %s\n", joinIDs(res.IgnoredMarkers))
	}
	return writeSnapshot(w, res.Snapshot)
}

func runLatest(ctx context.Context, w io.Writer, g *globalFlags) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	snap, err := svc.GetLatestHealthScore(ctx, g.user)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, snap)
	}
	return writeSnapshot(w, snap)
}

func runToday(ctx context.Context, w io.Writer, g *globalFlags) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	snap, err := svc.GetTodaysHealthScore(ctx, g.user)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, snap)
	}
	return writeSnapshot(w, snap)
}

func runHistory(ctx context.Context, w io.Writer, g *globalFlags, since string) error {
	svc, cfg, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	var sinceT time.Time
	if since != "" {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		if sinceT, err = time.ParseInLocation(model.DateLayout, since, loc); err != nil {
			return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
		}
	}

	history, err := svc.GetHealthScoreHistory(ctx, g.user, sinceT)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		if history == nil {
			history = []model.Snapshot{}
		}
		return writeJSON(w, history)
	}
	if len(history) == 0 {
		fmt.Fprintln(w, "no health scores found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSCORE\tVERSION\tFORCED\tID")
	for _, s := range history {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%t\t%s\n", s.CalendarDate, s.OverallScore, s.AlgorithmVersion, s.Forced, s.ID)
	}
	return tw.Flush()
}

func runCategories(ctx context.Context, w io.Writer, g *globalFlags, category string) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	var c *model.Category
	if category != "" {
		cat := model.Category(category)
		c = &cat
	}
	out, err := svc.GetMarkerScoresByCategory(ctx, g.user, c)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, out)
	}
	return writeBreakdowns(w, out)
}

func runTrends(ctx context.Context, w io.Writer, g *globalFlags, markers []string, window int) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	ids := make([]model.MarkerID, 0, len(markers))
	for _, m := range markers {
		ids = append(ids, model.MarkerID(strings.TrimSpace(m)))
	}
	out, err := svc.GetMarkerScoreTrends(ctx, g.user, ids, window)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, out)
	}
	return writeTrends(w, out)
}

func runSummary(ctx context.Context, w io.Writer, g *globalFlags, window int) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := svc.GetCategoryPerformanceSummary(ctx, g.user, window)
	if err != nil {
		return userError(err)
	}
	if g.jsonOutput {
		return writeJSON(w, out)
	}
	return writeSummary(w, out)
}

// simulationReport is the JSON output of the simulate command.
type simulationReport struct {
	Stats   simulate.Stats              `json:"stats"`
	User    string                      `json:"user"`
	Summary []types.CategoryPerformance `json:"summary"`
	Overall model.TrendResult           `json:"overall"`
}

func runSimulate(ctx context.Context, w io.Writer, g *globalFlags, p simulateParams) error {
	clock := simulate.NewClock(time.Now())
	svc, cfg, err := openService(ctx, g, service.WithClock(clock))
	if err != nil {
		return err
	}
	defer svc.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	today := time.Now().In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), simulationHour, 0, 0, 0, loc).AddDate(0, 0, -p.days)

	simCfg := simulate.DefaultConfig()
	simCfg.Users = p.users
	simCfg.Days = p.days
	simCfg.Seed = p.seed
	simCfg.Workers = p.workers
	simCfg.MissingRate = p.missing
	simCfg.Start = start
	if g.user != "" {
		simCfg.UserPrefix = g.user + "-"
	}

	stats, err := simulate.Run(ctx, svc, clock, simCfg)
	if err != nil {
		return err
	}

	report := simulationReport{Stats: stats, User: simCfg.UserID(0)}
	if report.Summary, err = svc.GetCategoryPerformanceSummary(ctx, report.User, p.window); err != nil {
		return err
	}
	if report.Overall, err = svc.GetOverallScoreTrend(ctx, report.User, p.window); err != nil {
		return err
	}

	if g.jsonOutput {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "simulated %d users over %s..%s: %d calculations, %d stored, %d without data, %d failed (%s)\n",
		len(stats.Users), stats.FirstDate, stats.LastDate,
		stats.Calculations, stats.Created, stats.NoData, stats.Failed, stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\nsummary for %s (overall %s %.1f%%)\n", report.User, report.Overall.Direction, report.Overall.MagnitudePercent)
	return writeSummary(w, report.Summary)
}

func runMarkers(ctx context.Context, w io.Writer, g *globalFlags) error {
	svc, _, err := openService(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close()

	defs := svc.Catalog()
	if g.jsonOutput {
		return writeJSON(w, defs)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKER\tCATEGORY\tRANGE\tPOLARITY\tWEIGHT\tSOURCE")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%g..%g %s\t%s\t%.2f\t%s\n", d.ID, d.Category, d.Min, d.Max, d.Unit, d.Polarity, d.Weight, d.Source)
	}
	return tw.Flush()
}

// parseMarkers turns id=value pairs into a marker bag.
func parseMarkers(raw []string) (model.MarkerValues, error) {
	values := make(model.MarkerValues, len(raw))
	for _, kv := range raw {
		id, val, ok := strings.Cut(kv, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --marker %q: want id=value", kv)
		}
		val = strings.TrimSpace(val)
		if strings.EqualFold(val, "null") {
			values[model.MarkerID(id)] = nil
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --marker %q: %w", kv, err)
		}
		values[model.MarkerID(id)] = model.Float(f)
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSnapshot(w io.Writer, s model.Snapshot) error {
	fmt.Fprintf(w, "overall %.1f on %s (version %s, calculated %s)\n",
		s.OverallScore, s.CalendarDate, s.AlgorithmVersion, s.CalculatedAt.Format(time.RFC3339))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSCORE\tMARKERS\tCOVERED")
	for _, c := range s.CategoryScores {
		fmt.Fprintf(tw, "%s\t%.1f\t%d\t%.0f%%\n", c.Category, c.Score, c.MarkerCount, 100*c.CoveredWeight)
	}
	return tw.Flush()
}

func writeBreakdowns(w io.Writer, out []types.CategoryBreakdown) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tMARKER\tRAW\tNORMALIZED")
	for _, b := range out {
		fmt.Fprintf(tw, "%s\t\t\t%s\n", b.Category, formatOptional(b.Score, "%.1f"))
		for _, m := range b.Markers {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\n", m.MarkerID, formatOptional(m.RawValue, "%g"), formatOptional(m.NormalizedValue, "%.3f"))
		}
	}
	return tw.Flush()
}

func writeTrends(w io.Writer, out []model.TrendResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tDIRECTION\tCHANGE\tWINDOW")
	for _, t := range out {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%dd\n", t.MetricID, t.Direction, t.MagnitudePercent, t.WindowDays)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, out []types.CategoryPerformance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCURRENT\tDIRECTION\tCHANGE")
	for _, p := range out {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\n", p.Category, formatOptional(p.CurrentScore, "%.1f"), p.Trend.Direction, p.Trend.MagnitudePercent)
	}
	return tw.Flush()
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func joinIDs(ids []model.MarkerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
