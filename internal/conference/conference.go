// Package conference runs the per-call control loop. Every input, whether a
// roster change or a user command, is handled on one goroutine and produces
// exactly one recomputation from one consistent snapshot.
package conference

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Aneesh-Raskar/vemeego/internal/layout"
	"github.com/Aneesh-Raskar/vemeego/internal/paging"
	"github.com/Aneesh-Raskar/vemeego/internal/state"
	"github.com/Aneesh-Raskar/vemeego/internal/subscription"
	"github.com/Aneesh-Raskar/vemeego/internal/visibility"
)

var log = logging.Logger("conference")

// Conference owns the pin, both page cursors and the layout machine of one
// call. Only the loop goroutine touches them.
type Conference struct {
	roster *state.Roster
	ctrl   *subscription.Controller

	pinned   string
	primary  paging.Cursor
	overflow paging.Cursor
	machine  *layout.Machine
	view     visibility.View

	cmds    chan command
	events  chan state.Event
	done    chan struct{}
	stopped chan struct{}
	closed  sync.Once

	mu        sync.RWMutex
	plan      layout.RenderPlan
	listeners map[chan layout.RenderPlan]struct{}
}

// New starts the loop over r. The first plan is computed before New returns.
func New(ctx context.Context, r *state.Roster) *Conference {
	c := &Conference{
		roster:    r,
		ctrl:      subscription.New(),
		primary:   paging.NewPrimary(),
		overflow:  paging.NewOverflow(),
		machine:   layout.NewMachine(),
		cmds:      make(chan command),
		events:    r.Subscribe(),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		listeners: make(map[chan layout.RenderPlan]struct{}),
	}
	c.tick(ctx)

	go c.loop(ctx)
	return c
}

type command struct {
	fn  func()
	ack chan struct{}
}

func (c *Conference) loop(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case evt, ok := <-c.events:
			if !ok {
				return
			}
			if evt.Type == state.EventLeave && c.pinned == evt.Identity {
				log.Debugw("pinned participant left", "identity", evt.Identity)
				c.pinned = ""
			}
			if evt.Type == state.EventLeave {
				c.machine.ParticipantLeft(evt.Identity)
			}
			c.tick(ctx)
		case cmd := <-c.cmds:
			cmd.fn()
			c.tick(ctx)
			close(cmd.ack)
		}
	}
}

// tick runs one recomputation: resolve, reconcile subscriptions, plan.
func (c *Conference) tick(ctx context.Context) {
	v := visibility.Resolve(visibility.Snapshot{
		Roster:   c.roster.Snapshot(),
		Pinned:   c.pinned,
		Primary:  c.primary,
		Overflow: c.overflow,
	})
	c.view = v
	c.pinned = v.Pinned
	c.primary = v.Primary
	c.overflow = v.Overflow

	c.ctrl.Apply(ctx, v.Ordered, v.Visible)

	c.machine.SetPresenter(v.Presenter)
	if c.machine.Pinned() != v.Pinned {
		c.machine.TogglePin(v.Pinned)
	}
	plan := layout.Plan(v, c.machine)

	c.mu.Lock()
	c.plan = plan
	for ch := range c.listeners {
		select {
		case ch <- plan:
		default:
		}
	}
	c.mu.Unlock()
}

// do runs fn on the loop goroutine and waits for the tick that follows it.
// It returns false once the loop has stopped.
func (c *Conference) do(fn func()) bool {
	cmd := command{fn: fn, ack: make(chan struct{})}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return false
	}
	<-cmd.ack
	return true
}

// TogglePin pins identity, or clears the pin if identity is already pinned.
// Pinning someone not in the roster is ignored.
func (c *Conference) TogglePin(identity string) {
	c.do(func() {
		if c.pinned == identity {
			c.pinned = ""
			return
		}
		if _, ok := c.roster.Get(identity); !ok {
			log.Debugw("pin ignored, not in roster", "identity", identity)
			return
		}
		c.pinned = identity
	})
}

func (c *Conference) NextPage() {
	c.do(func() { c.primary = c.primary.Next(len(c.view.Eligible)) })
}

func (c *Conference) PrevPage() {
	c.do(func() { c.primary = c.primary.Prev() })
}

func (c *Conference) GotoPage(page int) {
	c.do(func() { c.primary = c.primary.Goto(page, len(c.view.Eligible)) })
}

func (c *Conference) NextOverflowPage() {
	c.do(func() { c.overflow = c.overflow.Next(len(c.view.Eligible)) })
}

func (c *Conference) PrevOverflowPage() {
	c.do(func() { c.overflow = c.overflow.Prev() })
}

// Refresh forces a recomputation and waits for it.
func (c *Conference) Refresh() {
	c.do(func() {})
}

// Plan returns the most recent render plan.
func (c *Conference) Plan() layout.RenderPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

// Subscribe streams every new plan. Slow readers miss intermediate plans.
// The returned cancel func is safe to call more than once.
func (c *Conference) Subscribe() (<-chan layout.RenderPlan, func()) {
	ch := make(chan layout.RenderPlan, 16)
	c.mu.Lock()
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.listeners[ch]; ok {
				delete(c.listeners, ch)
				close(ch)
			}
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close stops the loop and closes every plan subscription.
func (c *Conference) Close() {
	c.closed.Do(func() {
		close(c.done)
		<-c.stopped
		c.roster.Unsubscribe(c.events)

		c.mu.Lock()
		for ch := range c.listeners {
			delete(c.listeners, ch)
			close(ch)
		}
		c.mu.Unlock()
	})
}
