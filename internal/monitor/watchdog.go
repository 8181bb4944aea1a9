package monitor

import (
	"sync"
	"time"
)

// watchdog tracks output activity and reports when the stream has been
// silent for longer than its timeout. It never restarts anything.
type watchdog struct {
	mu sync.Mutex

	timeout time.Duration
	now     func() time.Time

	lastActivity time.Time
	stalled      bool
	stalledAt    time.Time
}

func newWatchdog(timeout time.Duration, now func() time.Time) *watchdog {
	return &watchdog{
		timeout:      timeout,
		now:          now,
		lastActivity: now(),
	}
}

// enabled reports whether stall detection is on.
func (w *watchdog) enabled() bool {
	return w.timeout > 0
}

// recordActivity notes that output arrived. It returns true, with the
// length of the stall, the first time activity follows a stall.
func (w *watchdog) recordActivity() (recovered bool, stalledFor time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.lastActivity = now
	if !w.stalled {
		return false, 0
	}
	w.stalled = false
	return true, now.Sub(w.stalledAt)
}

// check returns true, with the silence so far, when the timeout has just
// been exceeded. It fires once per stall.
func (w *watchdog) check() (tripped bool, silence time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.enabled() || w.stalled {
		return false, 0
	}

	now := w.now()
	silence = now.Sub(w.lastActivity)
	if silence <= w.timeout {
		return false, 0
	}
	w.stalled = true
	w.stalledAt = now
	return true, silence
}

// interval is how often check should run.
func (w *watchdog) interval() time.Duration {
	iv := w.timeout / 4
	if iv < 50*time.Millisecond {
		iv = 50 * time.Millisecond
	}
	if iv > time.Second {
		iv = time.Second
	}
	return iv
}
