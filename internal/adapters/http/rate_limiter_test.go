package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntentLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 3, 9, 7, 5, 0, 0, time.UTC)
	rl := NewIntentLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a", "start"))
	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a", "start"))
	assert.False(t, rl.Allow("a", "start"))

	now = now.Add(9 * time.Second)
	assert.True(t, rl.Allow("a", "start"), "first intent left the window")
	assert.False(t, rl.Allow("a", "start"))
}

func TestIntentLimiterKeys(t *testing.T) {
	rl := NewIntentLimiter(1, time.Minute)

	assert.True(t, rl.Allow("a", "stop"))
	assert.False(t, rl.Allow("a", "stop"))
	assert.True(t, rl.Allow("a", "start"), "limits are per intent")
	assert.True(t, rl.Allow("b", "stop"), "limits are per camera")
}

func TestIntentLimiterDisabled(t *testing.T) {
	var nilLimiter *IntentLimiter
	assert.True(t, nilLimiter.Allow("a", "start"))

	rl := NewIntentLimiter(0, time.Second)
	for range 100 {
		assert.True(t, rl.Allow("a", "start"))
	}
}
