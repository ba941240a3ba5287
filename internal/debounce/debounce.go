// Package debounce provides a small cancel-and-reschedule timer used to
// coalesce bursts of events into a single trailing callback.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recent callback once no new trigger has arrived for
// the configured quiet window. Each Trigger cancels any pending callback and
// restarts the window.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// New constructs a Debouncer with the provided quiet window.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the quiet window, replacing any callback
// scheduled by an earlier Trigger that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the pending callback, if any. It reports whether a callback
// was still pending.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
