package session

import "time"

// Clock schedules the retry timer. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// retryTimer is the single owned timer handle of a session. The pointer itself
// is the identity checked when the timer fires.
type retryTimer struct {
	t Timer
}

func (rt *retryTimer) stop() {
	if rt != nil && rt.t != nil {
		rt.t.Stop()
	}
}
