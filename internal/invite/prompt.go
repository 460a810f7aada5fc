package invite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

// ErrPromptDone is returned when acting on a prompt that already ended.
var ErrPromptDone = errors.New("invite: prompt already answered")

// Outcome is how a prompt ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeDeclined
	OutcomeTimedOut
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDeclined:
		return "declined"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeClosed:
		return "closed"
	default:
		return "pending"
	}
}

// Prompt is the single active incoming call. It ends exactly once, by the
// user answering, the timeout firing, or the watcher closing.
type Prompt struct {
	Invitation Invitation
	Meta       SessionMeta

	w       *Watcher
	mu      sync.Mutex
	timer   *time.Timer
	outcome Outcome
	done    chan struct{}
}

// start rings and arms the timeout unless the prompt already ended.
// Ringer Start and Stop both run under p.mu so a prompt that ended first
// never starts ringing.
func (p *Prompt) start(timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome != OutcomePending {
		return
	}
	p.w.ringer.Start()
	p.timer = time.AfterFunc(timeout, p.expire)
}

// finish ends the prompt with o. Only the first caller wins.
func (p *Prompt) finish(o Outcome) bool {
	p.mu.Lock()
	if p.outcome != OutcomePending {
		p.mu.Unlock()
		return false
	}
	p.outcome = o
	if p.timer != nil {
		p.timer.Stop()
	}
	p.w.ringer.Stop()
	p.mu.Unlock()

	p.w.release(p)
	close(p.done)
	log.Infow("prompt ended", "invitation", p.Invitation.ID, "session", p.Invitation.SessionID, "outcome", o.String())
	return true
}

// Accept joins the call. The accept handler runs even if persisting the new
// status fails; that error is returned.
func (p *Prompt) Accept(ctx context.Context) error {
	if !p.finish(OutcomeAccepted) {
		return ErrPromptDone
	}
	err := p.w.persist(ctx, p.Invitation.ID, StatusAccepted)
	if p.w.opts.OnAccept != nil {
		p.w.opts.OnAccept(p.Invitation, p.Meta)
	}
	return err
}

// Decline rejects the call.
func (p *Prompt) Decline(ctx context.Context) error {
	if !p.finish(OutcomeDeclined) {
		return ErrPromptDone
	}
	return p.w.persist(ctx, p.Invitation.ID, StatusDeclined)
}

func (p *Prompt) expire() {
	if !p.finish(OutcomeTimedOut) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), util.DefaultFetchTimeout)
	defer cancel()
	_ = p.w.persist(ctx, p.Invitation.ID, StatusDeclined)
}

// Close dismisses the prompt without answering it.
func (p *Prompt) Close() {
	p.finish(OutcomeClosed)
}

// Done is closed when the prompt ends.
func (p *Prompt) Done() <-chan struct{} { return p.done }

func (p *Prompt) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}
