package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	name string
	n    int
}

func (e testEvent) EventName() string { return e.name }

func TestHandlerChainOrder(t *testing.T) {
	d := NewDispatcher()
	var got []string

	d.AddHandler("ev", func(Event) Disposition {
		got = append(got, "second")
		return Continue
	}, 200)
	d.AddHandler("ev", func(Event) Disposition {
		got = append(got, "first")
		return Continue
	}, 100)
	d.AddHandler("ev", func(Event) Disposition {
		got = append(got, "third")
		return Continue
	}, 200)

	d.Dispatch(testEvent{name: "ev"})
	// Ascending order; ties resolved by registration order.
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestHandlerStopTerminatesChain(t *testing.T) {
	d := NewDispatcher()
	var got []string

	d.AddHandler("ev", func(Event) Disposition {
		got = append(got, "stopper")
		return Stop
	}, 1)
	d.AddHandler("ev", func(Event) Disposition {
		got = append(got, "unreached")
		return Continue
	}, 2)

	d.Dispatch(testEvent{name: "ev"})
	assert.Equal(t, []string{"stopper"}, got)
}

func TestGroupDeliversInPostOrder(t *testing.T) {
	c := NewWithGroups(2)
	defer c.Stop()

	got := make(chan int, 100)
	c.RegisterHandler("ordered", func(e Event) Disposition {
		got <- e.(testEvent).n
		return Continue
	}, 100)

	go c.Run()
	g := c.AssignGroup()
	for i := 0; i < 100; i++ {
		g.Post(testEvent{name: "ordered", n: i})
	}

	for i := 0; i < 100; i++ {
		select {
		case n := <-got:
			require.Equal(t, i, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestShutdownEventStopsCore(t *testing.T) {
	c := New()

	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	c.Post(ShutdownEvent{})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("core did not stop on shutdown event")
	}
}

func TestTimerFires(t *testing.T) {
	c := NewWithGroups(1)
	defer c.Stop()
	go c.Run()

	fired := make(chan struct{})
	c.Timers().After(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerCancelIdempotent(t *testing.T) {
	c := NewWithGroups(1)
	defer c.Stop()
	go c.Run()

	fired := make(chan struct{}, 1)
	timer := c.Timers().After(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.Cancel()
	timer.Cancel() // cancelling twice has the same effect as once

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerReset(t *testing.T) {
	c := NewWithGroups(1)
	defer c.Stop()
	go c.Run()

	fired := make(chan time.Time, 1)
	start := time.Now()
	timer := c.Timers().After(10*time.Millisecond, func() { fired <- time.Now() })
	timer.Cancel()
	timer.Reset(50 * time.Millisecond)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 45*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("reset timer did not fire")
	}
}

func TestTimerDelay(t *testing.T) {
	c := NewWithGroups(1)
	defer c.Stop()
	go c.Run()

	fired := make(chan time.Time, 1)
	start := time.Now()
	timer := c.Timers().After(10*time.Millisecond, func() { fired <- time.Now() })
	timer.Delay(40 * time.Millisecond)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 45*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed timer did not fire")
	}
}
