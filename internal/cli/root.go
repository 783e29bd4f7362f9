package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sheetsync/internal/app"
	"sheetsync/internal/config"
	"sheetsync/internal/processing"
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync",
	Short: "Sync a Google Sheets tracker into a Supabase table",
	Long: `sheetsync pushes the rows of a spreadsheet tracker into a Supabase
(PostgREST) table keyed by serial number, keeps it in sync on edits and on a
schedule, and copies the table back into the spreadsheet for review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Replaced in tests.
var (
	loadConfig = config.Load
	openSheet  = func(ctx context.Context, a *app.App) (processing.Spreadsheet, error) {
		return a.Sheets(ctx)
	}
)

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}

// withApp opens the local state for one command run.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := app.Open(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

// connect binds the spreadsheet to the remote table.
func connect(ctx context.Context, a *app.App) (*processing.Workflows, error) {
	sheet, err := openSheet(ctx, a)
	if err != nil {
		return nil, err
	}
	return a.Workflows(sheet)
}
