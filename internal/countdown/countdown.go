// Package countdown implements the per-room "match starts in N seconds"
// ticker: cancelable, restartable, one running loop per timer at most.
package countdown

import (
	"sync"
	"time"
)

// Timer counts down once per second from the value passed to Start. OnTick
// fires with the remaining count at the top of each second; OnFinished fires
// only if the countdown reaches zero without being stopped. Callbacks run on
// the timer's own goroutine, so callers synchronize shared state themselves.
type Timer struct {
	OnTick     func(remaining int)
	OnFinished func()

	mu      sync.Mutex
	running bool
	done    chan struct{}

	// tick interval, overridable in tests
	interval time.Duration
}

func NewTimer() *Timer {
	return &Timer{interval: time.Second}
}

// Start cancels any in-flight countdown, waits for its loop to exit, then
// begins a new one. No two loops ever run concurrently for the same timer.
func (t *Timer) Start(count int) {
	t.mu.Lock()
	prev := t.done
	t.running = false
	t.mu.Unlock()

	if prev != nil {
		<-prev
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.running = true
	t.done = done
	t.mu.Unlock()

	go t.run(count, done)
}

// Stop marks the timer inactive; the running loop observes this at its next
// step and exits without firing OnFinished.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) run(count int, done chan struct{}) {
	defer close(done)

	for remaining := count; remaining > 0; remaining-- {
		if !t.IsRunning() {
			return
		}
		if t.OnTick != nil {
			t.OnTick(remaining)
		}
		time.Sleep(t.interval)
	}

	if !t.IsRunning() {
		return
	}
	if t.OnFinished != nil {
		t.OnFinished()
	}
}
