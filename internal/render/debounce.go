package render

import (
	"sync"
	"time"
)

// debouncer delays an action until a burst of triggering events has settled
// for a fixed quiet interval. Rapid successive calls reset the timer.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{duration: duration}
}

// debounce schedules fn after the quiet interval, cancelling any pending call
func (d *debouncer) debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// cancel drops any pending call
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// immediate cancels any pending call and runs fn now
func (d *debouncer) immediate(fn func()) {
	d.cancel()
	fn()
}
