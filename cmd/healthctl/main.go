package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cfgFile    string
	user       string
	jsonOutput bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "Compute and inspect daily health scores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", os.Getenv("HEALTHSCORE_CONFIG"), "config file (default: $HEALTHSCORE_CONFIG)")
	root.PersistentFlags().StringVar(&g.user, "user", os.Getenv("HEALTHSCORE_USER"), "user id (default: $HEALTHSCORE_USER)")
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(scoreCmd(g))
	root.AddCommand(latestCmd(g))
	root.AddCommand(todayCmd(g))
	root.AddCommand(historyCmd(g))
	root.AddCommand(categoriesCmd(g))
	root.AddCommand(trendsCmd(g))
	root.AddCommand(summaryCmd(g))
	root.AddCommand(simulateCmd(g))
	root.AddCommand(markersCmd(g))

	return root
}

func scoreCmd(g *globalFlags) *cobra.Command {
	var (
		markers []string
		version string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Calculate today's health score from marker values",
		Example: `  healthctl score --user u1 --marker recovery_score=72 --marker hrv_rmssd=65
  healthctl score --user u1 --marker bmi=23.4 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), g, markers, version, force)
		},
	}

	cmd.Flags().StringArrayVar(&markers, "marker", nil, "marker value as id=value; use id=null for a missing reading")
	cmd.Flags().StringVar(&version, "algorithm-version", "", "algorithm version (default: from config)")
	cmd.Flags().BoolVar(&force, "force", false, "recalculate even if today's score exists")
	return cmd
}

func latestCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent health score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLatest(cmd.Context(), cmd.OutOrStdout(), g)
		},
	}
}

func todayCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show the health score in effect today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToday(cmd.Context(), cmd.OutOrStdout(), g)
		},
	}
}

func historyCmd(g *globalFlags) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List health scores, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), cmd.OutOrStdout(), g, since)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only scores on or after this date (YYYY-MM-DD)")
	return cmd
}

func categoriesCmd(g *globalFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Break the latest score down by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategories(cmd.Context(), cmd.OutOrStdout(), g, category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "single category (recovery, sleep, movement, body_composition)")
	return cmd
}

func trendsCmd(g *globalFlags) *cobra.Command {
	var (
		markers []string
		window  int
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show marker trends over a window of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrends(cmd.Context(), cmd.OutOrStdout(), g, markers, window)
		},
	}

	cmd.Flags().StringSliceVar(&markers, "markers", nil, "marker ids (default: all)")
	cmd.Flags().IntVar(&window, "window", 0, "window in days (default: from config)")
	return cmd
}

func summaryCmd(g *globalFlags) *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show current score and trend per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), cmd.OutOrStdout(), g, window)
		},
	}

	cmd.Flags().IntVar(&window, "window", 0, "window in days (default: from config)")
	return cmd
}

func simulateCmd(g *globalFlags) *cobra.Command {
	var (
		users   int
		days    int
		seed    uint64
		workers int
		missing float64
		window  int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay synthetic days of marker data through the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), g, simulateParams{
				users: users, days: days, seed: seed, workers: workers, missing: missing, window: window,
			})
		},
	}

	cmd.Flags().IntVar(&users, "users", 5, "number of synthetic users")
	cmd.Flags().IntVar(&days, "days", 28, "number of days to replay")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent calculations per day")
	cmd.Flags().Float64Var(&missing, "missing-rate", 0.1, "probability that a marker is missing on a day")
	cmd.Flags().IntVar(&window, "window", 0, "trend window for the final summary (default: from config)")
	return cmd
}

func markersCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "markers",
		Short: "List the configured marker catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkers(cmd.Context(), cmd.OutOrStdout(), g)
		},
	}
}
