package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sheetsync/internal/app"
	"sheetsync/internal/notifications"
	"sheetsync/internal/providers"
)

var setupKeyCmd = &cobra.Command{
	Use:   "setup-key [api-key]",
	Short: "Store the Supabase API key used for every remote call",
	Long: `Store the Supabase API key in the local property store.

The key is read from the argument, or prompted for when omitted. Keys must be
JWTs (starting with "eyJ"). An empty answer to the prompt cancels.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetupKey,
}

func init() {
	rootCmd.AddCommand(setupKeyCmd)
}

func runSetupKey(cmd *cobra.Command, args []string) error {
	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		var err error
		key, err = promptSecret(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter your Supabase API Key: ")
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		err := providers.SetupAPIKey(ctx, a.Properties, key)
		if errors.Is(err, providers.ErrInvalidAPIKey) {
			notifications.Show(ctx, a.Alerter, "❌ Error", "Invalid API key format")
			return err
		}
		if err != nil {
			notifications.Show(ctx, a.Alerter, "❌ Error", err.Error())
			return err
		}
		notifications.Show(ctx, a.Alerter, "✅ Success", "API key stored securely!")
		return nil
	})
}

// promptSecret reads a line without echo when in is a terminal, and falls
// back to promptLine for piped input.
func promptSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return promptLine(in, out, prompt)
	}

	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// promptLine prints prompt and reads one trimmed line. EOF counts as an empty
// answer.
func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
