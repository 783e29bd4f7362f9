package triggers

import (
	"fmt"
	"strings"
)

// Status summarizes which sync triggers are installed.
type Status struct {
	EditActive      bool `json:"edit_active"`
	ScheduledActive bool `json:"scheduled_active"`
	Total           int  `json:"total"`
}

// StatusOf derives the status from a trigger list.
func StatusOf(installed []Trigger) Status {
	s := Status{Total: len(installed)}
	for _, t := range installed {
		switch t.Handler {
		case HandlerEdit:
			s.EditActive = true
		case HandlerScheduled:
			s.ScheduledActive = true
		}
	}
	return s
}

func (s Status) String() string {
	var sb strings.Builder
	sb.WriteString("Auto-Sync Status:\n\n")
	if s.EditActive {
		sb.WriteString("✅ Edit Trigger: ACTIVE (runs on cell edit)\n")
	} else {
		sb.WriteString("❌ Edit Trigger: MISSING\n")
	}
	if s.ScheduledActive {
		sb.WriteString("✅ Scheduled Trigger: ACTIVE (runs hourly)\n")
	} else {
		sb.WriteString("❌ Scheduled Trigger: MISSING\n")
	}
	sb.WriteString(fmt.Sprintf("\nTotal triggers: %d", s.Total))
	return sb.String()
}
