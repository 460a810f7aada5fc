package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/Aneesh-Raskar/vemeego/internal/roster"
)

// TrackStats counts the RTP traffic of a bound track.
type TrackStats struct {
	Packets uint64
	Bytes   uint64
	LastSeq uint16
}

func (s *TrackStats) observe(p *rtp.Packet) {
	s.Packets++
	s.Bytes += uint64(len(p.Payload))
	s.LastSeq = p.SequenceNumber
}

// remoteTrack adapts a pion TrackRemote to roster.Track.
type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r remoteTrack) ID() string   { return r.t.ID() }
func (r remoteTrack) Kind() string { return r.t.Kind().String() }

// Publication is a track announced by the SFU for a remote participant.
// Its subscription is toggled by asking the SFU to forward or stop forwarding
// the track.
type Publication struct {
	sid      string
	source   roster.Source
	identity string
	session  string
	sig      Signaler

	mu         sync.Mutex
	muted      bool
	subscribed bool
	track      roster.Track
	stats      TrackStats
}

func newPublication(session, identity, sid string, source roster.Source, muted bool, sig Signaler) *Publication {
	return &Publication{sid: sid, source: source, identity: identity, session: session, muted: muted, sig: sig}
}

func (p *Publication) SID() string           { return p.sid }
func (p *Publication) Source() roster.Source { return p.source }
func (p *Publication) Identity() string      { return p.identity }

func (p *Publication) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *Publication) setMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

// Track returns the bound track, nil until media arrives.
func (p *Publication) Track() roster.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track
}

func (p *Publication) bind(t roster.Track) {
	p.mu.Lock()
	p.track = t
	p.mu.Unlock()
}

// SetSubscribed asks the SFU to start or stop forwarding this track. The
// local flag only changes once the request was sent.
func (p *Publication) SetSubscribed(ctx context.Context, subscribed bool) error {
	err := p.sig.Send(ctx, Signal{
		Type:       SignalTrackSubscription,
		Session:    p.session,
		Identity:   p.identity,
		SID:        p.sid,
		Subscribed: subscribed,
	})
	if err != nil {
		return fmt.Errorf("track %s subscription: %w", p.sid, err)
	}
	p.mu.Lock()
	p.subscribed = subscribed
	if !subscribed {
		p.track = nil
	}
	p.mu.Unlock()
	return nil
}

func (p *Publication) IsSubscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

// Stats returns a copy of the RTP counters.
func (p *Publication) Stats() TrackStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Publication) observe(pkt *rtp.Packet) {
	p.mu.Lock()
	p.stats.observe(pkt)
	p.mu.Unlock()
}
