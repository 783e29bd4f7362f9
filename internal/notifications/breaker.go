package notifications

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// breaker stops pushes after repeated failures and lets one through again
// once the cooldown has passed.
type breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// allow reports whether a push may be attempted.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.open = false
	b.failures = b.threshold - 1
	log.Info().Msg("Notification breaker half-open, trying one push")
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open || b.failures > 0 {
		log.Debug().Int("failures", b.failures).Msg("Notification breaker reset")
	}
	b.failures = 0
	b.open = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.openedAt = b.now()
		log.Warn().
			Int("failures", b.failures).
			Dur("cooldown", b.cooldown).
			Msg("Notification breaker opened")
	}
}
