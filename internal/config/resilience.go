package config

import (
	"time"

	"sheetsync/internal/retry"
)

// ResilienceConfig holds the retry presets for spreadsheet calls. Remote table
// calls are not retried; the bulk upsert escalates to per-row sync instead.
type ResilienceConfig struct {
	SheetRead  retry.Config
	SheetWrite retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		Name:       "sheets.read",
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetWrite: retry.Config{
		Name:       "sheets.write",
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    30 * time.Second,
	},
}

// NoRetryConfig runs each spreadsheet call exactly once.
var NoRetryConfig = ResilienceConfig{
	SheetRead:  retry.Config{Name: "sheets.read", Timeout: 15 * time.Second},
	SheetWrite: retry.Config{Name: "sheets.write", Timeout: 30 * time.Second},
}

// Resilience picks the retry preset for spreadsheet calls.
func (c Config) Resilience() ResilienceConfig {
	if c.Sheets.NoRetry {
		return NoRetryConfig
	}
	return DefaultResilienceConfig
}
