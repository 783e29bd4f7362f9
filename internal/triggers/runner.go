package triggers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner hosts the installed triggers inside the daemon. The registry is read
// on every firing, so enabling or disabling from the CLI takes effect without
// a restart.
type Runner struct {
	orch     *Orchestrator
	registry *Registry
	tick     time.Duration

	triggerID string
	lastRun   time.Time

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

func NewRunner(orch *Orchestrator, registry *Registry, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Runner{orch: orch, registry: registry, tick: tick}
}

// Run checks the scheduled trigger every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Dur("tick", r.tick).Msg("Trigger runner started")

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Trigger runner stopping")
			r.mu.Lock()
			r.stopping = true
			r.mu.Unlock()
			r.inflight.Wait()
			return nil
		case now := <-ticker.C:
			r.CheckSchedule(ctx, now)
		}
	}
}

// CheckSchedule fires the scheduled handler when its interval has elapsed
// since installation or since the previous run. It reports whether it fired.
func (r *Runner) CheckSchedule(ctx context.Context, now time.Time) bool {
	t, ok, err := r.registry.Find(ctx, HandlerScheduled)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read trigger registry")
		return false
	}
	if !ok {
		r.triggerID = ""
		return false
	}
	if t.ID != r.triggerID {
		r.triggerID = t.ID
		r.lastRun = t.CreatedAt
	}

	interval := t.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	if now.Sub(r.lastRun) < interval {
		return false
	}

	r.lastRun = now
	r.orch.RunScheduled(ctx)
	return true
}

// EditEnabled reports whether an edit trigger is installed.
func (r *Runner) EditEnabled(ctx context.Context) bool {
	ok, err := r.registry.Has(ctx, HandlerEdit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read trigger registry")
		return false
	}
	return ok
}

// FireEdit runs the edit handler when an edit trigger is installed.
func (r *Runner) FireEdit(ctx context.Context, ev EditEvent) bool {
	if !r.EditEnabled(ctx) {
		log.Debug().Str("sheet", ev.Sheet).Int("row", ev.Row).Msg("Edit trigger not installed, ignoring edit")
		return false
	}
	r.orch.OnEdit(ctx, ev)
	return true
}

// FireEditAsync is FireEdit on a background goroutine; Run waits for it on
// shutdown. Edits arriving after Run has begun stopping are dropped.
func (r *Runner) FireEditAsync(ctx context.Context, ev EditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		log.Warn().Str("sheet", ev.Sheet).Int("row", ev.Row).Msg("Trigger runner stopping, dropping edit")
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.FireEdit(ctx, ev)
	}()
}

// Wait blocks until all asynchronous edit handlers have returned.
func (r *Runner) Wait() {
	r.inflight.Wait()
}
