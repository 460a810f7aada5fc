// Package subscription drives subscribe/unsubscribe of remote camera
// publications from the visible set. It is the only writer of that
// capability; nothing else in the client may toggle it.
package subscription

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/visibility"
)

var log = logging.Logger("subscription")

// Result reports the side effects issued by one Apply.
type Result struct {
	Subscribed   []string // publication SIDs
	Unsubscribed []string
	Failed       []string
}

// Calls returns the number of transport calls issued, failed ones included.
func (r Result) Calls() int {
	return len(r.Subscribed) + len(r.Unsubscribed) + len(r.Failed)
}

// Controller remembers the last state applied to each publication so that a
// tick with an unchanged visible set issues no calls at all.
//
// A Controller is not safe for concurrent use; the conference loop owns it.
type Controller struct {
	applied map[string]appliedState // by publication SID
}

// appliedState is the last state set on one publication object. A new object
// under a known SID starts over.
type appliedState struct {
	pub roster.RemotePublication
	on  bool
}

// New returns an empty Controller.
func New() *Controller {
	return &Controller{applied: make(map[string]appliedState)}
}

// Apply reconciles camera subscriptions of remote participants with visible.
//
// Visible, unmuted cameras are subscribed. Cameras of participants outside the
// visible set are unsubscribed. A visible but muted camera is left as is.
// Screen shares, microphones and the local participant are never touched.
// A failed call is logged and not recorded, so the next tick retries it.
func (c *Controller) Apply(ctx context.Context, participants []roster.Participant, visible visibility.VisibleSet) Result {
	var res Result
	seen := make(map[string]struct{})

	for _, p := range participants {
		if p.Local {
			continue
		}
		isVisible := visible.Has(p.Identity)

		for _, pub := range p.Publications {
			if pub == nil || pub.Source() != roster.SourceCamera {
				continue
			}
			remote, ok := pub.(roster.RemotePublication)
			if !ok {
				continue
			}
			sid := remote.SID()
			seen[sid] = struct{}{}

			var want bool
			switch {
			case isVisible && !remote.IsMuted():
				want = true
			case !isVisible:
				want = false
			default:
				continue
			}

			if prev, ok := c.applied[sid]; ok && prev.pub == remote && prev.on == want {
				continue
			}

			if err := remote.SetSubscribed(ctx, want); err != nil {
				log.Warnw("set subscribed failed", "participant", p.Identity, "sid", sid, "subscribed", want, "err", err)
				delete(c.applied, sid)
				res.Failed = append(res.Failed, sid)
				continue
			}
			c.applied[sid] = appliedState{pub: remote, on: want}
			if want {
				res.Subscribed = append(res.Subscribed, sid)
			} else {
				res.Unsubscribed = append(res.Unsubscribed, sid)
			}
		}
	}

	for sid := range c.applied {
		if _, ok := seen[sid]; !ok {
			delete(c.applied, sid)
		}
	}

	if n := res.Calls(); n > 0 {
		log.Debugw("applied visible set", "visible", visible.Len(), "subscribed", len(res.Subscribed),
			"unsubscribed", len(res.Unsubscribed), "failed", len(res.Failed))
	}
	return res
}
