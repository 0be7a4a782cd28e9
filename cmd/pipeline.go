package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/designpipe/dp/internal/phase"
)

var (
	pipelineModeFlag string
	pipelineWatch    bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Start, retry, or cancel pipeline runs",
}

var pipelineStartCmd = &cobra.Command{
	Use:   "start [session-id]",
	Short: "Start the design pipeline for a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return pipelineStartRun(id, false)
	},
}

var pipelineRetryCmd = &cobra.Command{
	Use:   "retry [session-id]",
	Short: "Retry a failed pipeline run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return pipelineStartRun(id, true)
	},
}

var pipelineCancelCmd = &cobra.Command{
	Use:   "cancel [session-id]",
	Short: "Cancel a running pipeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return pipelineCancelRun(id)
	},
}

func init() {
	for _, c := range []*cobra.Command{pipelineStartCmd, pipelineRetryCmd} {
		c.Flags().StringVar(&pipelineModeFlag, "mode", "", "Pipeline mode: fast or pro (default from config)")
		c.Flags().BoolVarP(&pipelineWatch, "watch", "w", false, "Watch the session after starting")
	}
	pipelineCmd.AddCommand(pipelineStartCmd)
	pipelineCmd.AddCommand(pipelineRetryCmd)
	pipelineCmd.AddCommand(pipelineCancelCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func pipelineStartRun(id string, retry bool) error {
	ctx := context.Background()

	mode, err := pipelineMode(pipelineModeFlag)
	if err != nil {
		return err
	}

	if retry {
		// Only failed runs can be retried; check before hitting the start
		// endpoint so the error is actionable.
		sess, err := apiClient.GetSession(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch session: %w", err)
		}
		if !phase.Classify(sess.Status).Failed {
			return fmt.Errorf("session %s is not in a failed state (status: %s)", id, sess.Status)
		}
	}

	if dryRun {
		ui.DryRunMsg("Would start %s pipeline for session %s", mode, id)
		return nil
	}

	status, err := apiClient.StartPipeline(ctx, id, mode)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	ui.Success("Pipeline started for %s (%s): %s", id, mode, status)

	if s, err := getStore(); err == nil {
		if rec, err := s.GetSession(ctx, id); err == nil {
			rec.Status = status
			rec.Mode = string(mode)
			_ = s.SaveSession(ctx, rec)
		}
		_ = s.RecordStatus(ctx, id, status)
	}

	if pipelineWatch {
		return watchRun(id)
	}
	return nil
}

func pipelineCancelRun(id string) error {
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would cancel pipeline for session %s", id)
		return nil
	}

	status, err := apiClient.CancelPipeline(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel pipeline: %w", err)
	}

	ui.Success("Cancellation requested for %s: %s", id, status)

	if s, err := getStore(); err == nil {
		_ = s.RecordStatus(ctx, id, status)
	}
	return nil
}
