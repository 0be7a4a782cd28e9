package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var furnitureCmd = &cobra.Command{
	Use:   "furniture [session-id]",
	Short: "List curated furniture for a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return furnitureRun(id)
	},
}

func init() {
	rootCmd.AddCommand(furnitureCmd)
}

func furnitureRun(id string) error {
	ctx := context.Background()

	sess, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	rememberSession(ctx, sess)

	if len(sess.FurnitureList) == 0 {
		ui.Info("No furniture curated yet (status: %s)", sess.Status)
		return nil
	}

	table := ui.Table([]string{"Item", "Size (cm)", "Price", "Product"})
	for _, item := range sess.FurnitureList {
		size := ""
		if item.WidthCM > 0 {
			size = fmt.Sprintf("%.0fx%.0fx%.0f", item.WidthCM, item.DepthCM, item.HeightCM)
		}
		price := ""
		if item.Price > 0 {
			price = fmt.Sprintf("%.2f %s", item.Price, item.Currency)
		}
		table.Append([]string{item.Name, size, price, item.ProductURL})
	}
	table.Render()
	return nil
}
