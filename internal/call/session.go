// Package call connects to the SFU of one call session. Signaling updates
// the roster; media arrives on a receive-only Pion PeerConnection.
package call

import (
	"context"
	"errors"
	"sort"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/state"
	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

var log = logging.Logger("call")

// Session is one joined call. pc may be nil, in which case offers and ICE
// candidates are ignored and only the roster is maintained.
type Session struct {
	sessionID string
	self      roster.Participant
	sig       Signaler
	roster    *state.Roster
	pc        *webrtc.PeerConnection

	mu      sync.Mutex
	pubs    map[string]*Publication // sid -> publication
	pending []webrtc.ICECandidateInit
	hung    bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSession puts self into r and wires the PeerConnection callbacks.
func NewSession(sessionID string, self roster.Participant, sig Signaler, r *state.Roster, pc *webrtc.PeerConnection) *Session {
	self.Local = true
	s := &Session{
		sessionID: sessionID,
		self:      self,
		sig:       sig,
		roster:    r,
		pc:        pc,
		pubs:      make(map[string]*Publication),
		done:      make(chan struct{}),
	}
	r.Upsert(self)

	if pc != nil {
		pc.OnICECandidate(s.onICECandidate)
		pc.OnTrack(s.onTrack)
		pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
			log.Infow("connection state", "session", sessionID, "state", st.String())
		})
	}
	return s
}

// Join announces the local participant and starts routing signals.
func (s *Session) Join(ctx context.Context) error {
	ch, cancel := s.sig.Subscribe()
	s.wg.Add(1)
	go s.dispatchLoop(ch, cancel)

	err := s.sig.Send(ctx, Signal{Type: SignalJoin, Session: s.sessionID, Identity: s.self.Identity, Name: s.self.Name})
	if err != nil {
		s.Hangup()
		return err
	}
	log.Infow("joined", "session", s.sessionID, "identity", s.self.Identity)
	return nil
}

func (s *Session) dispatchLoop(ch <-chan Signal, cancel func()) {
	defer s.wg.Done()
	defer cancel()
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			s.handleSignal(sig)
		}
	}
}

// handleSignal applies one inbound signaling message.
func (s *Session) handleSignal(sig Signal) {
	if sig.Identity == s.self.Identity && sig.Type != SignalOffer && sig.Type != SignalICECandidate {
		return
	}
	switch sig.Type {
	case SignalParticipantJoined:
		if _, ok := s.roster.Get(sig.Identity); ok {
			return
		}
		s.roster.Upsert(roster.Participant{Identity: sig.Identity, Name: sig.Name})

	case SignalParticipantLeft:
		s.mu.Lock()
		for sid, p := range s.pubs {
			if p.identity == sig.Identity {
				delete(s.pubs, sid)
			}
		}
		s.mu.Unlock()
		s.roster.Remove(sig.Identity)

	case SignalSpeaking:
		s.roster.SetSpeaking(sig.Identity, sig.Speaking)

	case SignalTrackPublished:
		if sig.SID == "" {
			return
		}
		if _, ok := s.roster.Get(sig.Identity); !ok {
			s.roster.Upsert(roster.Participant{Identity: sig.Identity, Name: sig.Name})
		}
		s.mu.Lock()
		known, ok := s.pubs[sig.SID]
		s.mu.Unlock()
		if ok && known.identity == sig.Identity {
			// Republished under a known sid: keep the subscribed object.
			known.setMuted(sig.Muted)
			s.roster.Touch(sig.Identity)
			return
		}
		pub := newPublication(s.sessionID, sig.Identity, sig.SID, roster.ParseSource(sig.Source), sig.Muted, s.sig)
		s.mu.Lock()
		s.pubs[sig.SID] = pub
		s.mu.Unlock()
		// Cameras follow visibility; everything else is always forwarded.
		if pub.Source() != roster.SourceCamera {
			s.subscribeAlways(pub)
		}
		s.syncPublications(sig.Identity)

	case SignalTrackUnpublished:
		s.mu.Lock()
		pub, ok := s.pubs[sig.SID]
		delete(s.pubs, sig.SID)
		s.mu.Unlock()
		if ok {
			s.syncPublications(pub.identity)
		}

	case SignalTrackMuted:
		s.mu.Lock()
		pub, ok := s.pubs[sig.SID]
		s.mu.Unlock()
		if ok {
			pub.setMuted(sig.Muted)
			s.roster.Touch(pub.identity)
		}

	case SignalOffer:
		s.handleOffer(sig.SDP)

	case SignalICECandidate:
		if sig.Candidate != nil {
			s.addCandidate(*sig.Candidate)
		}

	default:
		log.Debugw("unhandled signal", "session", s.sessionID, "type", sig.Type)
	}
}

func (s *Session) subscribeAlways(pub *Publication) {
	ctx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
	defer cancel()
	if err := pub.SetSubscribed(ctx, true); err != nil {
		log.Warnw("subscribe failed", "session", s.sessionID, "sid", pub.SID(), "source", pub.Source().String(), "err", err)
	}
}

// syncPublications copies the publications of identity into the roster,
// ordered by sid.
func (s *Session) syncPublications(identity string) {
	s.mu.Lock()
	var pubs []*Publication
	for _, p := range s.pubs {
		if p.identity == identity {
			pubs = append(pubs, p)
		}
	}
	s.mu.Unlock()

	sort.Slice(pubs, func(i, j int) bool { return pubs[i].sid < pubs[j].sid })
	out := make([]roster.Publication, len(pubs))
	for i, p := range pubs {
		out[i] = p
	}
	s.roster.SetPublications(identity, out)
}

// Publication returns the publication with sid.
func (s *Session) Publication(sid string) (*Publication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pubs[sid]
	return p, ok
}

func (s *Session) handleOffer(sdp string) {
	if s.pc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), util.DefaultFetchTimeout)
	defer cancel()

	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		log.Warnw("set remote description", "session", s.sessionID, "err", err)
		return
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		log.Warnw("create answer", "session", s.sessionID, "err", err)
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		log.Warnw("set local description", "session", s.sessionID, "err", err)
		return
	}
	if err := s.sig.Send(ctx, Signal{Type: SignalAnswer, Session: s.sessionID, Identity: s.self.Identity, SDP: answer.SDP}); err != nil {
		log.Warnw("send answer", "session", s.sessionID, "err", err)
		return
	}

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, c := range pending {
		s.addCandidate(c)
	}
}

// addCandidate queues candidates that arrive before the remote description.
func (s *Session) addCandidate(c webrtc.ICECandidateInit) {
	if s.pc == nil {
		return
	}
	if s.pc.RemoteDescription() == nil {
		s.mu.Lock()
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		log.Debugw("add ice candidate", "session", s.sessionID, "err", err)
	}
}

func (s *Session) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()
	ctx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
	defer cancel()
	if err := s.sig.Send(ctx, Signal{Type: SignalICECandidate, Session: s.sessionID, Identity: s.self.Identity, Candidate: &init}); err != nil {
		log.Debugw("send ice candidate", "session", s.sessionID, "err", err)
	}
}

// onTrack binds arriving media to its publication. The SFU uses the
// publication sid as track id.
func (s *Session) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	pub, ok := s.Publication(track.ID())
	if !ok {
		log.Warnw("track without publication", "session", s.sessionID, "track", track.ID())
		return
	}
	pub.bind(remoteTrack{t: track})
	s.roster.Touch(pub.identity)
	log.Infow("track bound", "session", s.sessionID, "identity", pub.identity, "sid", pub.sid, "kind", track.Kind().String())

	if track.Kind() == webrtc.RTPCodecTypeVideo && s.pc != nil {
		if err := s.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}}); err != nil {
			log.Debugw("send pli", "sid", pub.sid, "err", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				log.Debugw("track ended", "sid", pub.sid, "err", err)
				return
			}
			pub.observe(pkt)
			select {
			case <-s.done:
				return
			default:
			}
		}
	}()
}

// Hangup leaves the call and tears down the PeerConnection. It is safe to
// call more than once.
func (s *Session) Hangup() {
	s.mu.Lock()
	if s.hung {
		s.mu.Unlock()
		return
	}
	s.hung = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
	defer cancel()
	if err := s.sig.Send(ctx, Signal{Type: SignalLeave, Session: s.sessionID, Identity: s.self.Identity}); err != nil && !errors.Is(err, ErrSignalerClosed) {
		log.Debugw("send leave", "session", s.sessionID, "err", err)
	}

	close(s.done)
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			log.Debugw("close peer connection", "session", s.sessionID, "err", err)
		}
	}
	s.wg.Wait()
	s.roster.Remove(s.self.Identity)
	log.Infow("hung up", "session", s.sessionID)
}
