package countdown

import (
	"sync"
	"testing"
	"time"
)

func fastTimer() *Timer {
	t := NewTimer()
	t.interval = 10 * time.Millisecond
	return t
}

func TestTimer_StopPreventsFinish(t *testing.T) {
	timer := fastTimer()

	var mu sync.Mutex
	var ticks []int
	finished := false

	stopAt := make(chan struct{})
	timer.OnTick = func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
		if remaining == 8 {
			close(stopAt)
		}
	}
	timer.OnFinished = func() {
		mu.Lock()
		finished = true
		mu.Unlock()
	}

	timer.Start(10)
	<-stopAt
	timer.Stop()

	// Give a stale loop plenty of time to misfire if it were going to.
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if finished {
		t.Fatalf("OnFinished fired after Stop")
	}
	if len(ticks) == 0 || ticks[0] != 10 {
		t.Fatalf("first tick should carry the full count, got %v", ticks)
	}
	for i, remaining := range ticks {
		if remaining != 10-i {
			t.Fatalf("ticks not consecutive: %v", ticks)
		}
	}
	if ticks[len(ticks)-1] < 7 {
		t.Fatalf("ticked past the stop point: %v", ticks)
	}
}

func TestTimer_FinishesAndFiresCallback(t *testing.T) {
	timer := fastTimer()

	finished := make(chan struct{})
	timer.OnFinished = func() { close(finished) }

	timer.Start(3)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("countdown never finished")
	}
}

func TestTimer_RestartJoinsPriorRun(t *testing.T) {
	timer := fastTimer()

	var mu sync.Mutex
	var ticks []int
	timer.OnTick = func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}
	finished := make(chan struct{})
	timer.OnFinished = func() { close(finished) }

	timer.Start(60)
	timer.Start(2) // must stop and join the first run before starting

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("second countdown never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	// After the restart, only ticks from the 2-count run may appear past the
	// first run's prefix; 60-count ticks never interleave after a 2-count one.
	seenSecond := false
	for _, remaining := range ticks {
		if remaining <= 2 {
			seenSecond = true
		} else if seenSecond {
			t.Fatalf("stale run ticked after restart: %v", ticks)
		}
	}
}
