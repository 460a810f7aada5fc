// Package realtime is the push channel of a call: small best-effort payloads
// fanned out to every peer in the same session, tagged by topic.
package realtime

import "context"

// PublishOptions tags an outgoing payload.
type PublishOptions struct {
	// Reliable asks for ordered, acknowledged delivery where the transport
	// offers it. GossipSub has no such mode, so it is only logged there.
	Reliable bool
	Topic    string
}

// Packet is one received payload.
type Packet struct {
	Data  []byte
	From  string
	Topic string
}

// Handler receives packets. It is called from the channel's delivery
// goroutine and must not block for long.
type Handler func(Packet)

// Channel publishes payloads to a session and delivers those of other peers.
type Channel interface {
	Publish(ctx context.Context, data []byte, opts PublishOptions) error
	// OnData registers h and returns a func that removes it. The returned
	// func may be called any number of times.
	OnData(h Handler) (cancel func())
}

// handlers is the listener registry shared by Manager and Loopback.
type handlers struct {
	next int
	m    map[int]Handler
}

func (hs *handlers) add(h Handler) int {
	if hs.m == nil {
		hs.m = make(map[int]Handler)
	}
	hs.next++
	hs.m[hs.next] = h
	return hs.next
}

func (hs *handlers) remove(id int) {
	delete(hs.m, id)
}

func (hs *handlers) snapshot() []Handler {
	out := make([]Handler, 0, len(hs.m))
	for _, h := range hs.m {
		out = append(out, h)
	}
	return out
}
