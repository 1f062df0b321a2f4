package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"loan-assistant/internal/models"
	"loan-assistant/internal/telemetry"
)

func newReportCommand() *cobra.Command {
	var (
		dir     string
		date    string
		rollup  bool
		history int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the daily metrics report from the JSONL event log",
		Long: `Aggregate metrics.jsonl for one calendar day and print the report.

With --rollup the summary is also upserted into daily_stats.json.
With --history N the last N stored rollups are listed instead.`,
		Example: `  loanctl report
  loanctl report --date 2024-05-01 --rollup
  loanctl report --dir /var/log/loan --history 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Metrics.Dir
			}
			rec, err := telemetry.NewJSONLRecorder(afero.NewOsFs(), dir)
			if err != nil {
				return err
			}
			return runReport(cmd.OutOrStdout(), rec, date, rollup, history)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "metrics directory (default metrics.dir from config)")
	cmd.Flags().StringVar(&date, "date", "", "day to report as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&rollup, "rollup", false, "store the summary in daily_stats.json")
	cmd.Flags().IntVar(&history, "history", 0, "list the last N stored rollups")
	return cmd
}

func newRollupCommand() *cobra.Command {
	var (
		dir  string
		date string
	)
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Upsert one day's summary into daily_stats.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Metrics.Dir
			}
			rec, err := telemetry.NewJSONLRecorder(afero.NewOsFs(), dir)
			if err != nil {
				return err
			}
			return runReport(cmd.OutOrStdout(), rec, date, true, 0)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "metrics directory (default metrics.dir from config)")
	cmd.Flags().StringVar(&date, "date", "", "day to roll up as YYYY-MM-DD (default today)")
	return cmd
}

func runReport(out io.Writer, rec *telemetry.JSONLRecorder, date string, rollup bool, history int) error {
	if history > 0 {
		all, err := rec.History(history)
		if err != nil {
			return err
		}
		printHistory(out, all)
		return nil
	}

	day := time.Now()
	if date != "" {
		d, err := time.ParseInLocation(time.DateOnly, date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
		}
		day = d
	}

	var (
		summary models.DailySummary
		err     error
	)
	if rollup {
		summary, err = rec.RollupDaily(day)
	} else {
		summary, err = rec.Summary(day)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, telemetry.Report(summary))
	if _, skipped, err := rec.Events(); err == nil && skipped > 0 {
		fmt.Fprintln(out, color.YellowString("warning: skipped %d unreadable lines", skipped))
	}
	if rollup {
		fmt.Fprintln(out, color.GreenString("saved to %s", telemetry.DailyStatsFile))
	}
	return nil
}

func printHistory(out io.Writer, all []models.DailySummary) {
	if len(all) == 0 {
		fmt.Fprintln(out, "no rollups stored yet")
		return
	}
	fmt.Fprintf(out, "%-12s %8s %8s %10s %10s %8s\n", "date", "convos", "turns", "intent%", "complete%", "errors")
	for _, s := range all {
		fmt.Fprintf(out, "%-12s %8d %8d %10.2f %10.2f %8d\n",
			s.Date, s.TotalConversations, s.TotalTurns, s.IntentRecognitionRate, s.AvgCompletionRate, s.TotalErrors)
	}
}
