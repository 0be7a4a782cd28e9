package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/designpipe/dp/internal/feed"
	"github.com/designpipe/dp/internal/output"
)

var traceRaw bool

var traceCmd = &cobra.Command{
	Use:   "trace [session-id]",
	Short: "Show the aggregated job trace for a session",
	Long: `Show the aggregated trace feed across all of a session's jobs.

Repeated steps (retries, per-item fanout) collapse into one group with a
count and summed duration. Use --raw to see every event.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return traceRun(id)
	},
}

func init() {
	traceCmd.Flags().BoolVar(&traceRaw, "raw", false, "Show every trace event instead of the aggregated feed")
	rootCmd.AddCommand(traceCmd)
}

func traceRun(id string) error {
	ctx := context.Background()

	jobs, err := apiClient.ListJobs(ctx, id)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	f := feed.FromJobs(jobs)
	if len(f.Groups) == 0 && f.Running == nil {
		ui.Info("No trace events yet for %s.", id)
		return nil
	}

	if traceRaw {
		return traceRawRun(f)
	}

	renderFeed(f)
	return nil
}

func traceRawRun(f feed.Feed) error {
	table := ui.Table([]string{"Step", "Duration", "Visual"})
	for _, e := range feed.Flatten(f.Groups) {
		dur := output.Dim("-")
		if e.DurationMS != nil {
			dur = output.FormatDurationMS(*e.DurationMS)
		}
		table.Append([]string{e.Step, dur, e.Visual()})
	}
	if f.Running != nil {
		table.Append([]string{f.Running.Step, output.Yellow("running"), ""})
	}
	table.Render()
	return nil
}
