package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything the CLI and daemon need to reach the spreadsheet and
// the remote table.
type Config struct {
	Supabase SupabaseConfig `yaml:"supabase"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Triggers TriggersConfig `yaml:"triggers"`
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
}

type SupabaseConfig struct {
	URL     string        `yaml:"url"`
	Table   string        `yaml:"table"`
	Timeout time.Duration `yaml:"timeout"`
}

type SheetsConfig struct {
	SpreadsheetID   string   `yaml:"spreadsheet_id"`
	CredentialsFile string   `yaml:"credentials_file"`
	Primary         string   `yaml:"primary"`
	Alternatives    []string `yaml:"alternatives"`
	Targets         []string `yaml:"targets"`
	ViewSheet       string   `yaml:"view_sheet"`
	NoRetry         bool     `yaml:"no_retry"`
}

type TriggersConfig struct {
	SettleDelay      time.Duration `yaml:"settle_delay"`
	RowCeiling       int           `yaml:"row_ceiling"`
	ScheduleInterval time.Duration `yaml:"schedule_interval"`
	Tick             time.Duration `yaml:"tick"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type NtfyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Topic   string `yaml:"topic"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Supabase: SupabaseConfig{
			Table:   "met",
			Timeout: 30 * time.Second,
		},
		Sheets: SheetsConfig{
			CredentialsFile: "credentials.json",
			Primary:         "sheet1",
			Alternatives:    []string{"Sheet1", "SHEET1", "Data", "Main", "Transport Plan"},
			Targets:         []string{"sheet1", "Sheet1", "Data", "Main", "Transport Plan"},
			ViewSheet:       "Supabase Data",
		},
		Triggers: TriggersConfig{
			SettleDelay:      time.Second,
			RowCeiling:       1000,
			ScheduleInterval: time.Hour,
			Tick:             time.Minute,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		DB: DBConfig{
			Path: "sheetsync.db",
		},
		Ntfy: NtfyConfig{
			URL:   "https://ntfy.sh",
			Topic: "sheetsync",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// SHEETSYNC_CONFIG_PATH, and environment variables, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SHEETSYNC_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.Table, "SUPABASE_TABLE")
	setString(&cfg.Sheets.SpreadsheetID, "SPREADSHEET_ID")
	setString(&cfg.Sheets.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setString(&cfg.Sheets.ViewSheet, "SHEETSYNC_VIEW_SHEET")
	setString(&cfg.DB.Path, "SHEETSYNC_DB_PATH")
	setString(&cfg.Server.ListenAddr, "SHEETSYNC_LISTEN_ADDR")
	setString(&cfg.Ntfy.URL, "NTFY_URL")
	setString(&cfg.Ntfy.Topic, "NTFY_TOPIC")

	if v := os.Getenv("SHEETSYNC_SHEETS"); v != "" {
		cfg.Sheets.Targets = splitList(v)
	}
	if v := os.Getenv("SHEETSYNC_SHEETS_NO_RETRY"); v != "" {
		noRetry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SHEETSYNC_SHEETS_NO_RETRY: %w", err)
		}
		cfg.Sheets.NoRetry = noRetry
	}
	if v := os.Getenv("NTFY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NTFY_ENABLED: %w", err)
		}
		cfg.Ntfy.Enabled = enabled
	}
	if v := os.Getenv("SHEETSYNC_ROW_CEILING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SHEETSYNC_ROW_CEILING: %w", err)
		}
		cfg.Triggers.RowCeiling = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"SHEETSYNC_SETTLE_DELAY", &cfg.Triggers.SettleDelay},
		{"SHEETSYNC_SCHEDULE_INTERVAL", &cfg.Triggers.ScheduleInterval},
		{"SHEETSYNC_HTTP_TIMEOUT", &cfg.Supabase.Timeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks the settings every remote operation depends on.
func (c Config) Validate() error {
	var errs []error
	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.Supabase.Table == "" {
		errs = append(errs, errors.New("SUPABASE_TABLE is required"))
	}
	if c.Sheets.SpreadsheetID == "" {
		errs = append(errs, errors.New("SPREADSHEET_ID is required"))
	}
	if c.Sheets.Primary == "" {
		errs = append(errs, errors.New("primary sheet name is required"))
	}
	if c.Triggers.RowCeiling < 2 {
		errs = append(errs, fmt.Errorf("row ceiling must be at least 2, got %d", c.Triggers.RowCeiling))
	}
	if c.Triggers.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.Triggers.SettleDelay))
	}
	if c.Triggers.ScheduleInterval <= 0 {
		errs = append(errs, fmt.Errorf("schedule interval must be positive, got %s", c.Triggers.ScheduleInterval))
	}
	if c.Ntfy.Enabled && c.Ntfy.Topic == "" {
		errs = append(errs, errors.New("NTFY_TOPIC is required when notifications are enabled"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
