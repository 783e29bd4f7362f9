package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetsync/internal/app"
	"sheetsync/internal/notifications"
	"sheetsync/internal/processing"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert every row of the target sheet into the remote table",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Copy the remote table into the view sheet, ordered by serial number",
	Args:  cobra.NoArgs,
	RunE:  runView,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(viewCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		count, err := syncAll(ctx, a)
		if err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Sync Failed", err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "✅ Sync Complete",
			fmt.Sprintf("Successfully synced %d records to Supabase", count))
		return nil
	})
}

func syncAll(ctx context.Context, a *app.App) (int, error) {
	flows, err := connect(ctx, a)
	if err != nil {
		return 0, err
	}
	_, count, err := flows.SyncAll(ctx)
	return count, err
}

func runView(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		n, err := view(ctx, a)
		if err != nil {
			notifications.Show(ctx, a.Alerter, "", "❌ Error: "+err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "", "✅ "+processing.ViewMessage(n))
		return nil
	})
}

func view(ctx context.Context, a *app.App) (int, error) {
	flows, err := connect(ctx, a)
	if err != nil {
		return 0, err
	}
	return flows.ViewSyncedData(ctx)
}
