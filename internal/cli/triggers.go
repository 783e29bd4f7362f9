package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sheetsync/internal/app"
	"sheetsync/internal/notifications"
	"sheetsync/internal/server"
	"sheetsync/internal/triggers"
)

var enableCmd = &cobra.Command{
	Use:   "enable-auto-sync",
	Short: "Install the edit and hourly sync triggers",
	Args:  cobra.NoArgs,
	RunE:  runEnable,
}

var disableCmd = &cobra.Command{
	Use:   "disable-auto-sync",
	Short: "Remove every sync trigger",
	Args:  cobra.NoArgs,
	RunE:  runDisable,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which sync triggers are installed",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the installed triggers: the edit webhook and the hourly sync",
	Long: `Run the trigger daemon.

Edits arrive as POST /hooks/edit with a JSON body {"sheet", "row", "column"}.
The hourly sync runs on a timer. Both only fire while the matching trigger
is installed, so enable-auto-sync and disable-auto-sync take effect without a
restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SHEETSYNC_LISTEN_ADDR)")
}

// Installing, removing and listing triggers never runs a handler, so these
// orchestrators carry no syncer.

func runEnable(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Orchestrator(nil).Enable(ctx); err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Error", err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "✅ Auto-Sync Enabled",
			"Real-time and hourly sync triggers have been set up.")
		return nil
	})
}

func runDisable(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		removed, err := a.Orchestrator(nil).Disable(ctx)
		if err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Error", err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "✅ Auto-Sync Disabled",
			fmt.Sprintf("Removed %d sync triggers.", removed))
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		status, err := a.Orchestrator(nil).Status(ctx)
		if err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Error", err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "Auto-Sync Status", status.String())
		return nil
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		flows, err := connect(ctx, a)
		if err != nil {
			return err
		}

		orch := a.Orchestrator(flows)
		runner := triggers.NewRunner(orch, a.Registry, a.Config.Triggers.Tick)

		addr := a.Config.Server.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		runnerDone := make(chan error, 1)
		go func() {
			runnerDone <- runner.Run(ctx)
		}()

		err = server.ListenAndServe(ctx, addr, server.NewServer(ctx, runner, orch))
		cancel()
		if runErr := <-runnerDone; err == nil {
			err = runErr
		}
		if err != nil {
			return fmt.Errorf("daemon stopped: %w", err)
		}
		log.Info().Msg("Daemon stopped")
		return nil
	})
}
