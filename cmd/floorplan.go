package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var floorplanModeFlag string

var floorplanCmd = &cobra.Command{
	Use:   "floorplan",
	Short: "Upload floorplans",
}

var floorplanUploadCmd = &cobra.Command{
	Use:   "upload <image> [session-id]",
	Short: "Upload a floorplan image and kick off analysis",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args[1:])
		if err != nil {
			return err
		}
		return floorplanUploadRun(id, args[0])
	},
}

func init() {
	floorplanUploadCmd.Flags().StringVar(&floorplanModeFlag, "mode", "", "Pipeline mode: fast or pro (default from config)")
	floorplanCmd.AddCommand(floorplanUploadCmd)
	rootCmd.AddCommand(floorplanCmd)
}

func floorplanUploadRun(id, imagePath string) error {
	ctx := context.Background()

	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("floorplan image not readable: %w", err)
	}

	mode, err := pipelineMode(floorplanModeFlag)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would upload %s to session %s (%s mode)", imagePath, id, mode)
		return nil
	}

	ui.Info("Uploading %s ...", imagePath)
	room, err := apiClient.UploadFloorplan(ctx, id, imagePath, mode)
	if err != nil {
		return fmt.Errorf("upload floorplan: %w", err)
	}

	if room != nil && room.RoomType != "" {
		ui.Success("Floorplan accepted: %s %.1fx%.1fm", room.RoomType, room.WidthM, room.LengthM)
	} else {
		ui.Success("Floorplan accepted, analysis queued")
	}
	ui.Info("Follow progress with 'dp watch %s'", id)
	return nil
}
