package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/designpipe/dp/internal/feed"
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/output"
	"github.com/designpipe/dp/internal/phase"
)

var statusHistory bool

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show pipeline status for a session",
	Long: `Show the classified pipeline status for a session.

Renders the current phase, the status verdict (terminal, failed, or still
processing), job trace progress, and optionally the locally recorded
status history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return statusRun(id)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "Show locally recorded status transitions")
	rootCmd.AddCommand(statusCmd)
}

func statusRun(id string) error {
	ctx := context.Background()

	sess, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	rememberSession(ctx, sess)

	c := phase.Classify(sess.Status)

	fmt.Fprintf(ui.Out, "%s\n\n", phaseBarCell(c.Phase))
	fmt.Fprintf(ui.Out, "  %s  %s\n", statusCell(sess.Status), output.Dim(c.Label))

	switch {
	case c.Failed:
		ui.Error("Pipeline failed at the %s phase. Retry with 'dp pipeline retry'.", c.Phase)
	case c.Processing:
		ui.Info("Backend is working. Follow along with 'dp watch'.")
	case c.Terminal && c.Phase == phase.PhaseDone:
		ui.Success("Design complete.")
	}

	// Job trace summary
	jobs, err := apiClient.ListJobs(ctx, id)
	if err != nil {
		ui.VerboseLog("job listing failed: %v", err)
	} else if f := feed.FromJobs(jobs); len(f.Groups) > 0 || f.Running != nil {
		fmt.Fprintln(ui.Out)
		renderFeed(f)
	}

	if statusHistory {
		if err := renderHistory(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func renderHistory(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	history, err := s.StatusHistory(ctx, id)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		ui.Info("No status history recorded yet.")
		return nil
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Observed", "Status"})
	for _, h := range history {
		table.Append([]string{
			h.ObservedAt.Local().Format("2006-01-02 15:04:05"),
			statusCell(h.Status),
		})
	}
	table.Render()
	return nil
}

// renderFeed prints the aggregated trace feed: one line per group, the
// in-flight step last.
func renderFeed(f feed.Feed) {
	for _, g := range f.Groups {
		line := fmt.Sprintf("  %s %s", output.Green("✓"), g.Label())
		if g.Count() > 1 {
			line += output.Dim(fmt.Sprintf(" ×%d", g.Count()))
		}
		if d := g.TotalDurationMS(); d > 0 {
			line += output.Dim(" " + output.FormatDurationMS(d))
		}
		fmt.Fprintln(ui.Out, line)
	}
	if f.Running != nil {
		label := feed.Group{BaseStep: feed.BaseStep(f.Running.Step)}.Label()
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Yellow("…"), label)
	}
	if f.LatestVisual != "" {
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("preview:"), f.LatestVisual)
	}
}

func statusCell(status models.SessionStatus) string {
	return output.StatusColor(status)
}

func phaseBarCell(p phase.Phase) string {
	return output.PhaseBar(p)
}

// timeAgo renders a relative timestamp for table cells.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
