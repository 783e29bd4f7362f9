package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sheetsync/internal/app"
	"sheetsync/internal/notifications"
	"sheetsync/internal/processing"
)

const connectionTitle = "Supabase Connection Test"

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Read the remote table and report how many rows it holds",
	Args:  cobra.NoArgs,
	RunE:  runTestConnection,
}

var testRowCmd = &cobra.Command{
	Use:   "test-row <row>",
	Short: "Sync a single row of the target sheet the way an edit would",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestRow,
}

func init() {
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(testRowCmd)
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		remote, err := a.Remote()
		if err != nil {
			notifications.Show(ctx, a.Alerter, connectionTitle, "❌ Connection failed:\n"+err.Error())
			return err
		}
		rows, err := remote.SelectOrdered(ctx)
		if err != nil {
			notifications.Show(ctx, a.Alerter, connectionTitle, "❌ Connection failed:\n"+err.Error())
			return err
		}

		if len(rows) == 0 {
			notifications.Show(ctx, a.Alerter, connectionTitle, "⚠️ Connection works but no data found.")
			return nil
		}
		notifications.Show(ctx, a.Alerter, connectionTitle, fmt.Sprintf(
			"✅ Connection successful!\n\nFound %d records in Supabase.\nData is ordered by SL number.", len(rows)))
		return nil
	})
}

func runTestRow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		row, err := strconv.Atoi(args[0])
		if err != nil || row < 2 {
			notifications.Show(ctx, a.Alerter, "❌ Error", "Please enter a valid row number (2 or higher)")
			return processing.ErrInvalidRow
		}

		flows, err := connect(ctx, a)
		if err == nil {
			_, err = flows.TestRow(ctx, row)
		}
		if err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Error", fmt.Sprintf("Failed to sync row %d:\n%s", row, err))
			return err
		}
		notifications.Show(ctx, a.Alerter, "✅ Success", fmt.Sprintf("Row %d sync test completed.", row))
		return nil
	})
}
