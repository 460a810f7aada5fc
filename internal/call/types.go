package call

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Signal types exchanged with the SFU.
const (
	SignalJoin              = "join"
	SignalLeave             = "leave"
	SignalParticipantJoined = "participant-joined"
	SignalParticipantLeft   = "participant-left"
	SignalSpeaking          = "speaking"
	SignalTrackPublished    = "track-published"
	SignalTrackUnpublished  = "track-unpublished"
	SignalTrackMuted        = "track-muted"
	SignalTrackSubscription = "track-subscription"
	SignalOffer             = "offer"
	SignalAnswer            = "answer"
	SignalICECandidate      = "ice-candidate"
)

// Signal is one signaling message. Which fields are set depends on Type.
type Signal struct {
	Type       string                   `json:"type"`
	Session    string                   `json:"session,omitempty"`
	Identity   string                   `json:"identity,omitempty"`
	Name       string                   `json:"name,omitempty"`
	SID        string                   `json:"sid,omitempty"`
	Source     string                   `json:"source,omitempty"`
	Muted      bool                     `json:"muted,omitempty"`
	Speaking   bool                     `json:"speaking,omitempty"`
	Subscribed bool                     `json:"subscribed,omitempty"`
	SDP        string                   `json:"sdp,omitempty"`
	Candidate  *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Signaler is the only surface the call package needs from the signaling
// transport.
type Signaler interface {
	Send(ctx context.Context, sig Signal) error
	Subscribe() (ch <-chan Signal, cancel func())
}
