package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

// DefaultDropBufferSize is how many dropped payloads are kept for diagnostics.
const DefaultDropBufferSize = 64

// Drop records a push payload that was rejected.
type Drop struct {
	At     time.Time
	Reason string
	Size   int
	From   string
}

// Log is the reconciled message log of one chat panel. Entries are unique by
// message id and kept in arrival order. All methods are safe for concurrent
// use.
type Log struct {
	mu        sync.RWMutex
	entries   []Message
	index     map[string]struct{}
	listeners []chan struct{}

	drops *util.Ring[Drop]
}

func NewLog() *Log {
	return &Log{
		index: make(map[string]struct{}),
		drops: util.NewRing[Drop](DefaultDropBufferSize),
	}
}

// Seed installs the bulk-fetched messages as the start of the log. Entries
// that arrived before the fetch completed and are not part of it are kept
// after the fetched ones.
func (l *Log) Seed(fetched []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Message, 0, len(fetched)+len(l.entries))
	index := make(map[string]struct{}, len(fetched)+len(l.entries))
	added := 0
	for _, m := range fetched {
		if _, dup := index[m.ID]; dup || m.ID == "" {
			continue
		}
		index[m.ID] = struct{}{}
		entries = append(entries, m)
		if _, had := l.index[m.ID]; !had {
			added++
		}
	}
	for _, m := range l.entries {
		if _, dup := index[m.ID]; dup {
			continue
		}
		index[m.ID] = struct{}{}
		entries = append(entries, m)
	}
	l.entries = entries
	l.index = index

	if added > 0 {
		l.notify()
	}
}

// Insert appends e's message unless a message with the same id is already in
// the log. It reports whether the log changed.
func (l *Log) Insert(e Event) bool {
	m := e.Message
	if m.ID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[m.ID]; ok {
		log.Debugw("duplicate message", "id", m.ID, "origin", e.Origin.String())
		return false
	}
	l.index[m.ID] = struct{}{}
	l.entries = append(l.entries, m)
	l.notify()
	return true
}

// Messages returns the log in arrival order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByCreation returns the log sorted by creation time. Messages with equal
// timestamps keep their arrival order.
func (l *Log) ByCreation() []Message {
	out := l.Messages()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Has reports whether a message with id is in the log.
func (l *Log) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

// RecordDrop stores a rejected payload in the diagnostics ring.
func (l *Log) RecordDrop(d Drop) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	l.drops.Add(d)
}

// Drops returns the most recent rejected payloads, oldest first.
func (l *Log) Drops() []Drop {
	return l.drops.Items()
}

// Subscribe returns a channel that is signalled after the log changes.
// Signals coalesce; readers re-read the log with Messages or ByCreation.
func (l *Log) Subscribe() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{}, 1)
	l.listeners = append(l.listeners, ch)
	return ch
}

// Unsubscribe removes a listener channel. Unknown channels are ignored.
func (l *Log) Unsubscribe(ch <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, listener := range l.listeners {
		if listener == ch {
			close(listener)
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			return
		}
	}
}

// notify must be called with l.mu held.
func (l *Log) notify() {
	for _, listener := range l.listeners {
		select {
		case listener <- struct{}{}:
		default:
		}
	}
}
