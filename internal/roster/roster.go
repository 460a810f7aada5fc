// Package roster models call participants and their media publications and
// produces the deterministic display order used by every grid computation.
package roster

import (
	"context"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Source identifies what a publication carries.
type Source int

const (
	SourceUnknown Source = iota
	SourceCamera
	SourceScreenShare
	SourceMicrophone
)

func (s Source) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceScreenShare:
		return "screen_share"
	case SourceMicrophone:
		return "microphone"
	default:
		return "unknown"
	}
}

// ParseSource maps the wire name of a source back to a Source.
func ParseSource(s string) Source {
	switch s {
	case "camera":
		return SourceCamera
	case "screen_share", "screenshare":
		return SourceScreenShare
	case "microphone":
		return SourceMicrophone
	default:
		return SourceUnknown
	}
}

// Track is the bound media handle of a subscribed publication.
type Track interface {
	ID() string
	Kind() string
}

// Publication is a media stream handle, independent of whether it is rendered.
type Publication interface {
	SID() string
	Source() Source
	IsMuted() bool
	// Track returns nil until media is bound.
	Track() Track
}

// RemotePublication is a publication of a non-local participant whose
// delivery can be switched on and off.
type RemotePublication interface {
	Publication
	SetSubscribed(ctx context.Context, subscribed bool) error
	IsSubscribed() bool
}

// Participant is one member of a call session.
type Participant struct {
	Identity     string
	Name         string
	Speaking     bool
	Local        bool
	Publications []Publication
}

// DisplayName returns the name, or the identity when no name is set.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Identity
}

// Publication returns the first publication of the given source, if any.
func (p Participant) Publication(src Source) (Publication, bool) {
	for _, pub := range p.Publications {
		if pub != nil && pub.Source() == src {
			return pub, true
		}
	}
	return nil, false
}

// Camera returns the camera publication, if any.
func (p Participant) Camera() (Publication, bool) { return p.Publication(SourceCamera) }

// ScreenShare returns the screen share publication, if any.
func (p Participant) ScreenShare() (Publication, bool) { return p.Publication(SourceScreenShare) }

// HasVideo reports whether the camera is published, unmuted and bound.
func (p Participant) HasVideo() bool {
	cam, ok := p.Camera()
	return ok && !cam.IsMuted() && cam.Track() != nil
}

// HasAudio reports whether an unmuted, bound microphone exists.
func (p Participant) HasAudio() bool {
	mic, ok := p.Publication(SourceMicrophone)
	return ok && !mic.IsMuted() && mic.Track() != nil
}

// Order returns a copy of ps sorted for display: speaking participants first,
// then the rest, each group by case-insensitive display name. Identity breaks
// remaining ties so the order is total.
func Order(ps []Participant) []Participant {
	out := make([]Participant, len(ps))
	copy(out, ps)

	// Collators keep internal buffers and are not safe for concurrent use.
	col := collate.New(language.Und, collate.IgnoreCase)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Speaking != b.Speaking {
			return a.Speaking
		}
		if c := col.CompareString(a.DisplayName(), b.DisplayName()); c != 0 {
			return c < 0
		}
		return a.Identity < b.Identity
	})
	return out
}

// PresenterOf returns the identity of the first participant in ps publishing a
// screen share, or "" when nobody is presenting.
func PresenterOf(ps []Participant) string {
	for _, p := range ps {
		if _, ok := p.ScreenShare(); ok {
			return p.Identity
		}
	}
	return ""
}

// Find returns the participant with the given identity.
func Find(ps []Participant, identity string) (Participant, bool) {
	for _, p := range ps {
		if p.Identity == identity {
			return p, true
		}
	}
	return Participant{}, false
}
