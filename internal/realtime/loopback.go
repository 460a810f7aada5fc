package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing on a closed channel.
var ErrClosed = errors.New("realtime: channel closed")

// Loopback is an in-process session bus. Each Endpoint behaves like one peer:
// what it publishes reaches every other endpoint but not itself.
type Loopback struct {
	mu        sync.RWMutex
	endpoints map[*Endpoint]struct{}
}

func NewLoopback() *Loopback {
	return &Loopback{endpoints: make(map[*Endpoint]struct{})}
}

// Endpoint joins the bus as peerID.
func (l *Loopback) Endpoint(peerID string) *Endpoint {
	e := &Endpoint{bus: l, peerID: peerID}
	l.mu.Lock()
	l.endpoints[e] = struct{}{}
	l.mu.Unlock()
	return e
}

// Endpoint is one peer's view of a Loopback.
type Endpoint struct {
	bus    *Loopback
	peerID string

	mu     sync.Mutex
	hs     handlers
	closed bool
}

func (e *Endpoint) Publish(ctx context.Context, data []byte, opts PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	pkt := Packet{Data: buf, From: e.peerID, Topic: opts.Topic}

	e.bus.mu.RLock()
	peers := make([]*Endpoint, 0, len(e.bus.endpoints))
	for other := range e.bus.endpoints {
		if other != e {
			peers = append(peers, other)
		}
	}
	e.bus.mu.RUnlock()

	for _, other := range peers {
		other.deliver(pkt)
	}
	return nil
}

func (e *Endpoint) deliver(pkt Packet) {
	e.mu.Lock()
	hs := e.hs.snapshot()
	e.mu.Unlock()
	for _, h := range hs {
		h(pkt)
	}
}

func (e *Endpoint) OnData(h Handler) func() {
	e.mu.Lock()
	id := e.hs.add(h)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.hs.remove(id)
			e.mu.Unlock()
		})
	}
}

// Handlers returns the number of registered handlers.
func (e *Endpoint) Handlers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hs.m)
}

// Close leaves the bus and drops all handlers.
func (e *Endpoint) Close() {
	e.bus.mu.Lock()
	delete(e.bus.endpoints, e)
	e.bus.mu.Unlock()

	e.mu.Lock()
	e.closed = true
	e.hs = handlers{}
	e.mu.Unlock()
}
