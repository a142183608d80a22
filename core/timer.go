package core

import (
	"container/heap"
	"sync"
	"time"
)

// Timer is a cancellable handle on a pending callback.
type Timer struct {
	deadline  time.Time
	callback  func()
	cancelled bool
	index     int // heap position, -1 once fired or removed

	td *TimerDispatcher
}

// Cancel prevents the callback from firing. Idempotent; cancelling a
// fired timer is a no-op.
func (t *Timer) Cancel() {
	t.td.mu.Lock()
	defer t.td.mu.Unlock()
	t.cancelled = true
}

// Delay moves the deadline by d, which may be negative.
func (t *Timer) Delay(d time.Duration) {
	t.td.reschedule(t, func(old time.Time) time.Time { return old.Add(d) })
}

// Reset reschedules the timer d from now and un-cancels it.
func (t *Timer) Reset(d time.Duration) {
	t.td.reschedule(t, func(time.Time) time.Time { return time.Now().Add(d) })
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { t := x.(*Timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerDispatcher fires callbacks in deadline order. A cancelled
// timer never fires but still consumes one dequeue.
type TimerDispatcher struct {
	mu   sync.Mutex
	heap timerHeap
	wake chan struct{}
	done <-chan struct{}
}

func newTimerDispatcher(done <-chan struct{}) *TimerDispatcher {
	return &TimerDispatcher{
		wake: make(chan struct{}, 1),
		done: done,
	}
}

// After schedules callback to run d from now on the timer goroutine.
func (td *TimerDispatcher) After(d time.Duration, callback func()) *Timer {
	t := &Timer{
		deadline: time.Now().Add(d),
		callback: callback,
		td:       td,
	}
	td.mu.Lock()
	heap.Push(&td.heap, t)
	td.mu.Unlock()
	td.kick()
	return t
}

func (td *TimerDispatcher) reschedule(t *Timer, f func(time.Time) time.Time) {
	td.mu.Lock()
	t.deadline = f(t.deadline)
	t.cancelled = false
	if t.index >= 0 {
		heap.Fix(&td.heap, t.index)
	} else {
		heap.Push(&td.heap, t)
	}
	td.mu.Unlock()
	td.kick()
}

func (td *TimerDispatcher) kick() {
	select {
	case td.wake <- struct{}{}:
	default:
	}
}

func (td *TimerDispatcher) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		td.mu.Lock()
		var next time.Duration = time.Hour
		now := time.Now()
		var fire []*Timer
		for td.heap.Len() > 0 {
			t := td.heap[0]
			if t.deadline.After(now) {
				next = t.deadline.Sub(now)
				break
			}
			heap.Pop(&td.heap)
			if !t.cancelled {
				fire = append(fire, t)
			}
		}
		td.mu.Unlock()

		for _, t := range fire {
			t.callback()
		}

		select {
		case <-time.After(next):
		case <-td.wake:
		case <-td.done:
			return
		}
	}
}
