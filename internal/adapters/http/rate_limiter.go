package http

import (
	"sync"
	"time"

	"github.com/dkeye/CamView/internal/domain"
)

type intentKey struct {
	device domain.DeviceID
	intent string
}

// IntentLimiter is a sliding-window limit on user intents, kept separately for
// every camera and intent so a burst of stops never blocks a start.
type IntentLimiter struct {
	mu       sync.Mutex
	history  map[intentKey][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewIntentLimiter(limit int, interval time.Duration) *IntentLimiter {
	return &IntentLimiter{
		history:  make(map[intentKey][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records the intent when it fits in the window. A nil limiter or a
// non-positive limit allows everything.
func (rl *IntentLimiter) Allow(id domain.DeviceID, intent string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := intentKey{device: id, intent: intent}
	now := rl.now()
	cutoff := now.Add(-rl.interval)

	// timestamps are appended in order, so the expired ones form a prefix
	seen := rl.history[key]
	i := 0
	for i < len(seen) && !seen[i].After(cutoff) {
		i++
	}
	seen = seen[i:]

	if len(seen) >= rl.limit {
		rl.history[key] = seen
		return false
	}
	rl.history[key] = append(seen, now)
	return true
}
