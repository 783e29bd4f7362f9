package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/config"
	"sheetsync/internal/mapping"
	"sheetsync/internal/notifications"
	"sheetsync/internal/processing"
	"sheetsync/internal/providers"
	"sheetsync/internal/sheets"
	"sheetsync/internal/store"
	"sheetsync/internal/supabase"
	"sheetsync/internal/syncer"
	"sheetsync/internal/triggers"
)

// APIKeyEnv names the environment variable consulted when no key is stored.
const APIKeyEnv = "SUPABASE_API_KEY"

// App holds the local state shared by every command: the property store, the
// trigger registry and the alert channel.
type App struct {
	Config     config.Config
	DB         *store.DB
	Properties *store.PropertyStore
	Registry   *triggers.Registry
	Alerter    notifications.Alerter
}

// Open opens the local database and builds the alert channel. Remote clients
// are created on demand, so commands that only touch local state work before
// the remote settings are filled in.
func Open(cfg config.Config, out io.Writer) (*App, error) {
	log.Debug().Str("path", cfg.DB.Path).Msg("Opening local database")
	db, err := store.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		DB:         db,
		Properties: store.NewPropertyStore(db),
		Registry:   triggers.NewRegistry(store.NewTriggerRepository(db)),
		Alerter:    NewAlerter(cfg.Ntfy, out),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// NewAlerter writes alerts to out and, when enabled, also pushes them to ntfy.
func NewAlerter(cfg config.NtfyConfig, out io.Writer) notifications.Alerter {
	console := notifications.Console{Out: out}
	if !cfg.Enabled {
		log.Debug().Msg("Notifications disabled")
		return console
	}

	log.Debug().
		Str("base_url", cfg.URL).
		Str("topic", cfg.Topic).
		Msg("Initializing notification client")
	log.Info().Str("topic", cfg.Topic).Msg("Notifications enabled")
	return notifications.Multi{console, notifications.NewClient(cfg.URL, cfg.Topic, true)}
}

// Keys looks up the API key in the property store first, then the
// environment.
func (a *App) Keys() supabase.KeyProvider {
	return providers.Chain{
		providers.NewPropertyProvider(a.Properties),
		providers.EnvProvider{Name: APIKeyEnv},
	}
}

// Remote returns a client for the configured table.
func (a *App) Remote() (*supabase.Client, error) {
	if a.Config.Supabase.URL == "" {
		return nil, errors.New("SUPABASE_URL is required")
	}
	return supabase.NewClient(
		a.Config.Supabase.URL,
		a.Config.Supabase.Table,
		mapping.KeyColumn,
		a.Keys(),
		a.Config.Supabase.Timeout,
	), nil
}

// Sheets connects to the configured spreadsheet.
func (a *App) Sheets(ctx context.Context) (*sheets.Client, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return sheets.NewClient(ctx, a.Config.Sheets.CredentialsFile, a.Config.Sheets.SpreadsheetID, a.Config.Resilience())
}

// Workflows binds sheet to the remote table.
func (a *App) Workflows(sheet processing.Spreadsheet) (*processing.Workflows, error) {
	remote, err := a.Remote()
	if err != nil {
		return nil, err
	}
	return processing.New(sheet, syncer.New(remote), remote, processing.Options{
		PrimarySheet: a.Config.Sheets.Primary,
		Alternatives: a.Config.Sheets.Alternatives,
		ViewSheet:    a.Config.Sheets.ViewSheet,
	}), nil
}

// Orchestrator builds the trigger orchestrator around flows.
func (a *App) Orchestrator(flows triggers.Syncer) *triggers.Orchestrator {
	return triggers.NewOrchestrator(a.Registry, flows, triggers.Options{
		SpreadsheetID:    a.Config.Sheets.SpreadsheetID,
		TargetSheets:     a.Config.Sheets.Targets,
		SettleDelay:      a.Config.Triggers.SettleDelay,
		RowCeiling:       a.Config.Triggers.RowCeiling,
		ScheduleInterval: a.Config.Triggers.ScheduleInterval,
	})
}
