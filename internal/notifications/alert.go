package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Alerter shows a message to whoever ran the operation.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// Console writes alerts to a terminal.
type Console struct {
	Out io.Writer
}

func (c Console) Alert(ctx context.Context, title, message string) error {
	if title != "" {
		if _, err := fmt.Fprintf(c.Out, "%s\n", title); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(c.Out, "%s\n", message)
	return err
}

// Multi delivers every alert to each sink. Later sinks still run when an
// earlier one fails.
type Multi []Alerter

func (m Multi) Alert(ctx context.Context, title, message string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Show alerts and logs a failed delivery instead of returning it.
func Show(ctx context.Context, a Alerter, title, message string) {
	if err := a.Alert(ctx, title, message); err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Failed to deliver alert")
	}
}
