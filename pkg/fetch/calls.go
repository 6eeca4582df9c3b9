package fetch

import (
	"context"
	"sync"
)

// inFlightCalls tracks cancel functions of running requests of one Fetch.
type inFlightCalls struct {
	lock   sync.Mutex
	nextID uint64
	calls  map[uint64]context.CancelCauseFunc
}

func newInFlightCalls() *inFlightCalls {
	return &inFlightCalls{calls: make(map[uint64]context.CancelCauseFunc)}
}

// register adds the call, the returned function removes it.
func (c *inFlightCalls) register(cancel context.CancelCauseFunc) (unregister func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nextID++
	id := c.nextID
	c.calls[id] = cancel
	return func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		delete(c.calls, id)
	}
}

func (c *inFlightCalls) cancelAll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for id, cancel := range c.calls {
		cancel(context.Canceled)
		delete(c.calls, id)
	}
}

func (c *inFlightCalls) len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.calls)
}
