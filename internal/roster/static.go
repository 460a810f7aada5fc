package roster

import (
	"context"
	"sync"
)

// StaticPublication is an in-memory publication. It backs the local
// participant's own media and is handy wherever a transport is not attached.
type StaticPublication struct {
	mu         sync.Mutex
	sid        string
	source     Source
	muted      bool
	subscribed bool
	track      Track
	calls      int
}

// NewStaticPublication returns a publication with the given sid and source.
func NewStaticPublication(sid string, src Source) *StaticPublication {
	return &StaticPublication{sid: sid, source: src}
}

func (p *StaticPublication) SID() string    { return p.sid }
func (p *StaticPublication) Source() Source { return p.source }

func (p *StaticPublication) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *StaticPublication) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

func (p *StaticPublication) Track() Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track
}

func (p *StaticPublication) Bind(t Track) {
	p.mu.Lock()
	p.track = t
	p.mu.Unlock()
}

func (p *StaticPublication) SetSubscribed(_ context.Context, subscribed bool) error {
	p.mu.Lock()
	p.subscribed = subscribed
	p.calls++
	p.mu.Unlock()
	return nil
}

func (p *StaticPublication) IsSubscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

// Calls returns how many times SetSubscribed has been invoked.
func (p *StaticPublication) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
