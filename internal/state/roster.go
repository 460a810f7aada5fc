package state

import (
	"sync"

	"github.com/Aneesh-Raskar/vemeego/internal/roster"
)

// EventType names a roster change.
type EventType string

const (
	EventJoin         EventType = "join"
	EventLeave        EventType = "leave"
	EventSpeaking     EventType = "speaking"
	EventPublications EventType = "publications"
	EventUpdate       EventType = "update"
)

// Event is delivered to roster listeners on every change.
type Event struct {
	Type     EventType `json:"type"`
	Identity string    `json:"identity"`
}

// Roster is the live participant table of one call session. Participants
// are kept in join order; display ordering is the roster package's job.
type Roster struct {
	mu        sync.Mutex
	order     []string
	members   map[string]roster.Participant
	listeners []chan Event
}

func NewRoster() *Roster {
	return &Roster{
		members:   map[string]roster.Participant{},
		listeners: make([]chan Event, 0),
	}
}

// Upsert adds p or replaces the stored participant with the same identity.
func (r *Roster) Upsert(p roster.Participant) {
	if p.Identity == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := EventUpdate
	if _, ok := r.members[p.Identity]; !ok {
		r.order = append(r.order, p.Identity)
		typ = EventJoin
	}
	r.members[p.Identity] = p
	r.notifyListeners(Event{Type: typ, Identity: p.Identity})
}

func (r *Roster) Remove(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[identity]; !ok {
		return
	}
	delete(r.members, identity)
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.notifyListeners(Event{Type: EventLeave, Identity: identity})
}

// SetSpeaking updates the speaking flag; unchanged values are not announced.
func (r *Roster) SetSpeaking(identity string, speaking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[identity]
	if !ok || p.Speaking == speaking {
		return
	}
	p.Speaking = speaking
	r.members[identity] = p
	r.notifyListeners(Event{Type: EventSpeaking, Identity: identity})
}

// SetPublications replaces the publication list of a participant.
func (r *Roster) SetPublications(identity string, pubs []roster.Publication) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[identity]
	if !ok {
		return
	}
	p.Publications = pubs
	r.members[identity] = p
	r.notifyListeners(Event{Type: EventPublications, Identity: identity})
}

// Touch announces a change that happened inside a publication object, such as
// a mute flip or a track being bound.
func (r *Roster) Touch(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[identity]; !ok {
		return
	}
	r.notifyListeners(Event{Type: EventPublications, Identity: identity})
}

func (r *Roster) Get(identity string) (roster.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[identity]
	return p, ok
}

// Snapshot returns the participants in join order.
func (r *Roster) Snapshot() []roster.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]roster.Participant, 0, len(r.order))
	for _, id := range r.order {
		p := r.members[id]
		pubs := make([]roster.Publication, len(p.Publications))
		copy(pubs, p.Publications)
		p.Publications = pubs
		out = append(out, p)
	}
	return out
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Roster) Subscribe() chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Event, 64)
	r.listeners = append(r.listeners, ch)
	return ch
}

// Unsubscribe removes and closes ch. Unknown channels are ignored.
func (r *Roster) Unsubscribe(ch chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *Roster) notifyListeners(evt Event) {
	for _, ch := range r.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}
