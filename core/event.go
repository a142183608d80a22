package core

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Disposition is a handler's verdict on further chain processing.
type Disposition int

const (
	// Continue lets the remaining handlers in the chain observe the
	// event.
	Continue Disposition = iota
	// Stop terminates the chain walk.
	Stop
)

// Event is a named, immutable occurrence dispatched over the bus.
type Event interface {
	EventName() string
}

// Handler consumes an event and decides whether the chain continues.
type Handler func(Event) Disposition

type handlerEntry struct {
	order int
	seq   int
	fn    Handler
}

// Dispatcher routes events to ordered handler chains by event name.
// Handlers with equal order run in registration order. Registration
// after startup is permitted; reads never block each other.
type Dispatcher struct {
	mu     sync.RWMutex
	seq    int
	chains map[string][]handlerEntry
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{chains: make(map[string][]handlerEntry)}
}

// AddHandler registers fn for the named event at the given order.
func (d *Dispatcher) AddHandler(name string, fn Handler, order int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	chain := append(d.chains[name], handlerEntry{order: order, seq: d.seq, fn: fn})
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].order != chain[j].order {
			return chain[i].order < chain[j].order
		}
		return chain[i].seq < chain[j].seq
	})
	d.chains[name] = chain
}

// Dispatch walks the chain for e synchronously on the caller's
// goroutine.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.RLock()
	chain := d.chains[e.EventName()]
	d.mu.RUnlock()

	if len(chain) == 0 {
		log.Debugf("no handlers for event %s", e.EventName())
		return
	}
	for _, entry := range chain {
		if entry.fn(e) == Stop {
			break
		}
	}
}
