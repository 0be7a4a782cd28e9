package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/designpipe/dp/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent tooling query the design pipeline natively: session
status, aggregated traces, and pipeline control. Configure with:

  {
    "mcpServers": {
      "dp": { "command": "dp", "args": ["mcp"] }
    }
  }

Available tools: dp_list_sessions, dp_session_status, dp_trace_feed,
dp_start_pipeline, dp_cancel_pipeline`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mcp.NewServer(apiClient, s)
		if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
