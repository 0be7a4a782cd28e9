package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/phase"
	"github.com/designpipe/dp/internal/store"
)

var (
	sessionClientName string
	sessionLimit      int
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage design sessions",
	Long:  "Create, list, and select the design sessions this client tracks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new design session on the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionNewRun()
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List locally tracked sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's backend state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return sessionShowRun(id)
	},
}

var sessionUseCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Set the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionUseRun(args[0])
	},
}

func init() {
	sessionNewCmd.Flags().StringVar(&sessionClientName, "client-name", "", "Client name to record for the session")
	sessionListCmd.Flags().IntVar(&sessionLimit, "limit", 20, "Maximum sessions to list")
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionUseCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionNewRun() error {
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would create a new session at %s", viper.GetString("api.base_url"))
		return nil
	}

	id, err := apiClient.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	rec := &store.SessionRecord{
		ID:         id,
		ClientName: sessionClientName,
		Status:     models.StatusPending,
		Mode:       viper.GetString("pipeline.mode"),
	}
	if err := s.SaveSession(ctx, rec); err != nil {
		return err
	}
	if err := s.SetCurrentSession(ctx, id); err != nil {
		return err
	}

	ui.Success("Created session %s (now current)", id)
	return nil
}

func sessionListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sessions, err := s.ListSessions(ctx, sessionLimit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		ui.Info("No sessions tracked. Use 'dp session new' to get started.")
		return nil
	}

	current, _ := s.CurrentSession(ctx)

	table := ui.Table([]string{"", "Session", "Client", "Status", "Mode", "Last seen"})
	for _, rec := range sessions {
		marker := ""
		if rec.ID == current {
			marker = "*"
		}
		table.Append([]string{
			marker,
			rec.ID,
			rec.ClientName,
			statusCell(rec.Status),
			rec.Mode,
			timeAgo(rec.LastSeenAt),
		})
	}
	return table.Render()
}

func sessionShowRun(id string) error {
	ctx := context.Background()

	sess, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}

	rememberSession(ctx, sess)

	c := phase.Classify(sess.Status)

	fmt.Fprintf(ui.Out, "Session %s\n\n", sess.ID)
	fmt.Fprintf(ui.Out, "  Status:  %s (%s)\n", statusCell(sess.Status), c.Label)
	fmt.Fprintf(ui.Out, "  Phase:   %s\n", phaseBarCell(c.Phase))
	if sess.ClientName != "" {
		fmt.Fprintf(ui.Out, "  Client:  %s\n", sess.ClientName)
	}
	if sess.FloorplanURL != "" {
		fmt.Fprintf(ui.Out, "  Plan:    %s\n", sess.FloorplanURL)
	}
	if sess.RoomGLBURL != "" {
		fmt.Fprintf(ui.Out, "  Room:    %s\n", sess.RoomGLBURL)
	}
	if sess.MiroBoardURL != "" {
		fmt.Fprintf(ui.Out, "  Board:   %s\n", sess.MiroBoardURL)
	}
	if rd := sess.RoomData; rd != nil {
		fmt.Fprintf(ui.Out, "  Room:    %s %.1fx%.1fm\n", rd.RoomType, rd.WidthM, rd.LengthM)
	}
	if n := len(sess.FurnitureList); n > 0 {
		fmt.Fprintf(ui.Out, "  Items:   %d furniture items (see 'dp furniture')\n", n)
	}
	if n := len(sess.Placements); n > 0 {
		fmt.Fprintf(ui.Out, "  Layout:  %d placements (see 'dp placements show')\n", n)
	}
	fmt.Fprintf(ui.Out, "  Created: %s\n", sess.CreatedAt.Local().Format(time.RFC1123))

	return nil
}

func sessionUseRun(id string) error {
	ctx := context.Background()

	// Verify the session exists before pointing at it.
	sess, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("session lookup failed: %w", err)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	rememberSession(ctx, sess)
	if err := s.SetCurrentSession(ctx, id); err != nil {
		return err
	}

	ui.Success("Current session is now %s (%s)", id, sess.Status)
	return nil
}

// rememberSession mirrors backend session state into the local store, best
// effort. Display commands should not fail because bookkeeping did.
func rememberSession(ctx context.Context, sess *models.Session) {
	s, err := getStore()
	if err != nil {
		return
	}

	rec, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		rec = &store.SessionRecord{ID: sess.ID, Mode: viper.GetString("pipeline.mode")}
	}
	rec.Status = sess.Status
	if sess.ClientName != "" {
		rec.ClientName = sess.ClientName
	}
	if err := s.SaveSession(ctx, rec); err != nil {
		ui.VerboseLog("session bookkeeping failed: %v", err)
		return
	}
	if err := s.RecordStatus(ctx, sess.ID, sess.Status); err != nil {
		ui.VerboseLog("status history write failed: %v", err)
	}
}
