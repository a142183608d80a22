package core

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// DefaultGroups is the size of the dispatch group pool.
const DefaultGroups = 8

// Group is one dispatch domain: a single goroutine draining a FIFO
// event queue. Events posted to a group are observed by handlers in
// posting order; no ordering holds across groups.
type Group struct {
	id    int
	queue chan Event
	core  *Core
}

// Post enqueues e for dispatch on this group. It may be called from
// any goroutine.
func (g *Group) Post(e Event) {
	select {
	case g.queue <- e:
	case <-g.core.done:
	}
}

func (g *Group) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case e := <-g.queue:
			g.core.dispatcher.Dispatch(e)
		case <-g.core.done:
			return
		}
	}
}

// Core is the process-wide coordination surface: the event
// dispatcher, the dispatch group pool and the timer wheel. Components
// hold explicit handles to it; there are no hidden globals.
type Core struct {
	dispatcher *Dispatcher
	groups     []*Group
	timers     *TimerDispatcher

	nextGroup uint32

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New() *Core {
	return NewWithGroups(DefaultGroups)
}

func NewWithGroups(n int) *Core {
	c := &Core{
		dispatcher: NewDispatcher(),
		done:       make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		c.groups = append(c.groups, &Group{
			id:    i,
			queue: make(chan Event, 128),
			core:  c,
		})
	}
	c.timers = newTimerDispatcher(c.done)

	c.RegisterHandler(ShutdownEventName, func(Event) Disposition {
		c.Stop()
		return Continue
	}, 9999)
	return c
}

// Run starts the dispatch groups and the timer loop and blocks until
// Stop is called (typically via a Shutdown event).
func (c *Core) Run() {
	for _, g := range c.groups {
		c.wg.Add(1)
		go g.run(&c.wg)
	}
	c.wg.Add(1)
	go c.timers.run(&c.wg)
	<-c.done
	c.wg.Wait()
}

// Stop terminates dispatch. Idempotent.
func (c *Core) Stop() {
	c.stopOnce.Do(func() {
		log.Infoln("core stopping")
		close(c.done)
	})
}

// Done is closed once the core is stopping.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

// RegisterHandler adds fn to the handler chain for the named event.
func (c *Core) RegisterHandler(name string, fn Handler, order int) {
	c.dispatcher.AddHandler(name, fn, order)
}

// MainGroup is the group that registry join and leave events are
// posted to.
func (c *Core) MainGroup() *Group {
	return c.groups[0]
}

// AssignGroup pins a new connection to a dispatch group,
// round-robin over the pool.
func (c *Core) AssignGroup() *Group {
	n := atomic.AddUint32(&c.nextGroup, 1)
	return c.groups[int(n)%len(c.groups)]
}

// Post enqueues e on the main group.
func (c *Core) Post(e Event) {
	c.MainGroup().Post(e)
}

// Dispatch walks e's handler chain synchronously on the calling
// goroutine, bypassing the queues. Use only where the caller already
// runs on the owning group.
func (c *Core) Dispatch(e Event) {
	c.dispatcher.Dispatch(e)
}

// Timers exposes the timer dispatcher.
func (c *Core) Timers() *TimerDispatcher {
	return c.timers
}

// ShutdownEventName names the graceful-termination event. The
// lowest-priority handler, installed by New, stops the core.
const ShutdownEventName = "shutdown"

type ShutdownEvent struct{}

func (ShutdownEvent) EventName() string { return ShutdownEventName }
