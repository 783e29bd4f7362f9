package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Syncer is the sync work the triggers run.
type Syncer interface {
	ResolveTargetSheet(ctx context.Context) (string, error)
	SyncSheet(ctx context.Context, sheetName string) (int, error)
	SyncEditedRow(ctx context.Context, sheetName string, row int) (bool, error)
}

// Options tune the trigger handlers.
type Options struct {
	SpreadsheetID    string
	TargetSheets     []string
	SettleDelay      time.Duration
	RowCeiling       int
	ScheduleInterval time.Duration
}

// Orchestrator installs and removes the sync triggers and runs their handlers.
// Handler runs are serialized; neither handler ever reports an error to its caller.
type Orchestrator struct {
	registry *Registry
	syncer   Syncer
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
	mu       sync.Mutex
}

func NewOrchestrator(registry *Registry, syncer Syncer, opts Options) *Orchestrator {
	if opts.RowCeiling <= 0 {
		opts.RowCeiling = 1000
	}
	if opts.ScheduleInterval <= 0 {
		opts.ScheduleInterval = time.Hour
	}
	return &Orchestrator{
		registry: registry,
		syncer:   syncer,
		opts:     opts,
		sleep:    sleepContext,
	}
}

// Enable replaces any existing sync triggers with exactly one edit trigger and
// one scheduled trigger.
func (o *Orchestrator) Enable(ctx context.Context) error {
	removed, err := o.registry.RemoveHandlers(ctx, HandlerEdit, HandlerScheduled)
	if err != nil {
		return fmt.Errorf("failed to clear existing triggers: %w", err)
	}

	if _, err := o.registry.Install(ctx, Trigger{
		Handler: HandlerEdit,
		Kind:    KindEdit,
		Source:  o.opts.SpreadsheetID,
	}); err != nil {
		return err
	}
	if _, err := o.registry.Install(ctx, Trigger{
		Handler:  HandlerScheduled,
		Kind:     KindTime,
		Interval: o.opts.ScheduleInterval,
	}); err != nil {
		return err
	}

	log.Info().
		Int("replaced", removed).
		Dur("interval", o.opts.ScheduleInterval).
		Msg("Auto-sync triggers enabled")
	return nil
}

// Disable removes every sync trigger and returns how many were removed.
func (o *Orchestrator) Disable(ctx context.Context) (int, error) {
	removed, err := o.registry.RemoveHandlers(ctx, HandlerEdit, HandlerScheduled)
	if err != nil {
		return removed, fmt.Errorf("failed to remove triggers: %w", err)
	}
	log.Info().Int("removed", removed).Msg("Auto-sync triggers disabled")
	return removed, nil
}

// Status inspects the registry without changing it.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	installed, err := o.registry.List(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to list triggers: %w", err)
	}
	return StatusOf(installed), nil
}

// OnEdit syncs the edited row when the edit lands in the data area of a
// target sheet. Failures are logged only.
func (o *Orchestrator) OnEdit(ctx context.Context, ev EditEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Auto-sync error")
		}
	}()

	if !contains(o.opts.TargetSheets, ev.Sheet) {
		log.Debug().Str("sheet", ev.Sheet).Msg("Edit outside target sheets, ignoring")
		return
	}
	if ev.Row <= 1 || ev.Row >= o.opts.RowCeiling {
		log.Debug().
			Str("sheet", ev.Sheet).
			Int("row", ev.Row).
			Int("ceiling", o.opts.RowCeiling).
			Msg("Edit outside data rows, ignoring")
		return
	}

	// Let a multi-cell paste land before the row is read.
	if err := o.sleep(ctx, o.opts.SettleDelay); err != nil {
		log.Warn().Err(err).Int("row", ev.Row).Msg("Edit sync cancelled during settle delay")
		return
	}

	ok, err := o.syncer.SyncEditedRow(ctx, ev.Sheet, ev.Row)
	if err != nil {
		log.Error().Err(err).Str("sheet", ev.Sheet).Int("row", ev.Row).Msg("Auto-sync error")
		return
	}
	if !ok {
		log.Debug().Str("sheet", ev.Sheet).Int("row", ev.Row).Msg("Edited row has nothing to sync")
		return
	}
	log.Info().
		Str("sheet", ev.Sheet).
		Int("row", ev.Row).
		Int("column", ev.Column).
		Msg("Synced edited row")
}

// RunScheduled performs a full sync of the target sheet. Failures are logged only.
func (o *Orchestrator) RunScheduled(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Scheduled sync error")
		}
	}()

	sheetName, err := o.syncer.ResolveTargetSheet(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("No target sheet for scheduled sync")
		return
	}

	count, err := o.syncer.SyncSheet(ctx, sheetName)
	if err != nil {
		log.Error().Err(err).Str("sheet", sheetName).Msg("Scheduled sync failed")
		return
	}
	log.Info().Str("sheet", sheetName).Int("records", count).Msg("Scheduled sync complete")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
