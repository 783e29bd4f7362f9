package triggers

import (
	"context"
	"time"
)

// Handler names. A registered trigger is identified by the handler it runs.
const (
	HandlerEdit      = "onSheetEdit"
	HandlerScheduled = "scheduledSync"
)

// Kind separates event triggers from timers.
type Kind string

const (
	KindEdit Kind = "edit"
	KindTime Kind = "time"
)

// Trigger is one installed trigger.
type Trigger struct {
	ID        string
	Handler   string
	Kind      Kind
	Source    string        // spreadsheet ID for edit triggers
	Interval  time.Duration // period for time triggers
	CreatedAt time.Time
}

// Repository persists the installed triggers.
type Repository interface {
	List(ctx context.Context) ([]Trigger, error)
	Create(ctx context.Context, t *Trigger) error
	Delete(ctx context.Context, id string) error
}

// EditEvent describes a single cell edit.
type EditEvent struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}
