package triggers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry is the explicit list of installed triggers, addressed by handler name.
type Registry struct {
	repo  Repository
	newID func() string
}

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, newID: uuid.NewString}
}

// List returns every installed trigger.
func (r *Registry) List(ctx context.Context) ([]Trigger, error) {
	return r.repo.List(ctx)
}

// Install stores a new trigger and returns it with its assigned ID.
func (r *Registry) Install(ctx context.Context, t Trigger) (Trigger, error) {
	t.ID = r.newID()
	if err := r.repo.Create(ctx, &t); err != nil {
		return Trigger{}, fmt.Errorf("failed to install %s trigger: %w", t.Handler, err)
	}
	log.Debug().
		Str("id", t.ID).
		Str("handler", t.Handler).
		Str("kind", string(t.Kind)).
		Msg("Installed trigger")
	return t, nil
}

// RemoveHandlers deletes every trigger running one of the given handlers and
// reports how many were removed.
func (r *Registry) RemoveHandlers(ctx context.Context, handlers ...string) (int, error) {
	installed, err := r.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, t := range installed {
		if !contains(handlers, t.Handler) {
			continue
		}
		if err := r.repo.Delete(ctx, t.ID); err != nil {
			return removed, fmt.Errorf("failed to remove trigger %s: %w", t.ID, err)
		}
		log.Debug().Str("id", t.ID).Str("handler", t.Handler).Msg("Removed trigger")
		removed++
	}
	return removed, nil
}

// Find returns the first trigger running handler.
func (r *Registry) Find(ctx context.Context, handler string) (Trigger, bool, error) {
	installed, err := r.repo.List(ctx)
	if err != nil {
		return Trigger{}, false, err
	}
	for _, t := range installed {
		if t.Handler == handler {
			return t, true, nil
		}
	}
	return Trigger{}, false, nil
}

// Has reports whether any trigger runs handler.
func (r *Registry) Has(ctx context.Context, handler string) (bool, error) {
	_, ok, err := r.Find(ctx, handler)
	return ok, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
