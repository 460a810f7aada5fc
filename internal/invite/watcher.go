// Package invite turns invitation rows inserted for the local user into a
// ringing incoming call prompt. At most one prompt is active at a time.
package invite

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aneesh-Raskar/vemeego/internal/feed"
	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

var log = logging.Logger("invite")

// DefaultTimeout is how long a prompt rings before it declines itself.
const DefaultTimeout = 60 * time.Second

// DefaultResubscribe is the delay between attempts to resubscribe after the
// invitation feed drops.
const DefaultResubscribe = 2 * time.Second

// Table is the change feed table invitations are inserted into.
const Table = "invitations"

// Store answers metadata lookups and records invitation answers.
type Store interface {
	FetchSessionMetadata(ctx context.Context, id string) (SessionMeta, error)
	SetInvitationStatus(ctx context.Context, id string, status Status) error
}

type Options struct {
	UserID  string
	Timeout time.Duration
	Ringer  Ringer
	// OnPrompt is called when a prompt becomes active.
	OnPrompt func(*Prompt)
	// OnAccept navigates to the accepted session.
	OnAccept func(Invitation, SessionMeta)
	// Resubscribe is the retry delay after the feed drops.
	Resubscribe time.Duration
}

// Watcher listens for invitations addressed to one user.
type Watcher struct {
	src    feed.Source
	store  Store
	opts   Options
	ringer Ringer
	sf     singleflight.Group

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  func()
	unsub   func()
	active  *Prompt
	seen    map[string]struct{}
	wg      sync.WaitGroup
}

func NewWatcher(src feed.Source, store Store, opts Options) *Watcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Resubscribe <= 0 {
		opts.Resubscribe = DefaultResubscribe
	}
	r := opts.Ringer
	if r == nil {
		r = silentRinger{}
	}
	return &Watcher{
		src:    src,
		store:  store,
		opts:   opts,
		ringer: r,
		seen:   make(map[string]struct{}),
	}
}

// Start subscribes to the invitation feed. Later calls do nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("start watcher: closed")
	}
	if w.started {
		return nil
	}

	ctx, stop := context.WithCancel(ctx)
	inserts, unsubscribe, err := w.subscribe(ctx)
	if err != nil {
		stop()
		return fmt.Errorf("subscribe invitations: %w", err)
	}
	w.started = true
	w.unsub = unsubscribe

	var once sync.Once
	w.cancel = func() {
		once.Do(func() {
			stop()
			w.mu.Lock()
			unsub := w.unsub
			w.unsub = nil
			w.mu.Unlock()
			if unsub != nil {
				unsub()
			}
		})
	}

	w.wg.Add(1)
	go w.loop(ctx, inserts)
	log.Infow("watching invitations", "user", w.opts.UserID)
	return nil
}

func (w *Watcher) subscribe(ctx context.Context) (<-chan feed.Insert, func(), error) {
	return w.src.OnInsert(ctx, Table, feed.Filter{Column: "participant_id", Value: w.opts.UserID})
}

// loop dispatches invitation rows until ctx ends. A dropped feed is
// resubscribed; rows inserted while it was down are not replayed.
func (w *Watcher) loop(ctx context.Context, inserts <-chan feed.Insert) {
	defer w.wg.Done()
	for inserts != nil {
		w.dispatch(ctx, inserts)
		if ctx.Err() != nil {
			return
		}
		log.Warnw("invitation feed lost, resubscribing", "user", w.opts.UserID)
		inserts = w.resubscribe(ctx)
	}
}

func (w *Watcher) dispatch(ctx context.Context, inserts <-chan feed.Insert) {
	for in := range inserts {
		var inv Invitation
		if err := in.Decode(&inv); err != nil {
			log.Debugw("bad invitation row", "err", err)
			continue
		}
		if inv.Status != StatusInvited || inv.ParticipantID != w.opts.UserID {
			continue
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handle(ctx, inv)
		}()
	}
}

// resubscribe retries the feed subscription until it succeeds or ctx ends,
// in which case it returns nil.
func (w *Watcher) resubscribe(ctx context.Context) <-chan feed.Insert {
	t := time.NewTimer(w.opts.Resubscribe)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		inserts, unsub, err := w.subscribe(ctx)
		if err != nil {
			log.Debugw("resubscribe failed", "user", w.opts.UserID, "err", err)
			t.Reset(w.opts.Resubscribe)
			continue
		}

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			unsub()
			return nil
		}
		old := w.unsub
		w.unsub = unsub
		w.mu.Unlock()
		if old != nil {
			old()
		}
		log.Infow("invitation feed restored", "user", w.opts.UserID)
		return inserts
	}
}

// busy reports whether a new prompt cannot be shown now.
func (w *Watcher) busy(inv Invitation) bool {
	if w.closed {
		return true
	}
	if w.active != nil {
		log.Infow("invitation ignored, prompt active", "invitation", inv.ID, "active", w.active.Invitation.ID)
		return true
	}
	return false
}

func (w *Watcher) handle(ctx context.Context, inv Invitation) {
	w.mu.Lock()
	if _, dup := w.seen[inv.ID]; dup || w.busy(inv) {
		w.mu.Unlock()
		return
	}
	w.seen[inv.ID] = struct{}{}
	w.mu.Unlock()

	v, err, shared := w.sf.Do(inv.SessionID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, util.DefaultFetchTimeout)
		defer cancel()
		return w.store.FetchSessionMetadata(fetchCtx, inv.SessionID)
	})
	if err != nil {
		log.Warnw("fetch session metadata failed", "session", inv.SessionID, "err", err)
		return
	}
	meta := v.(SessionMeta)
	log.Debugw("session metadata", "session", meta.ID, "shared", shared)

	w.mu.Lock()
	if w.busy(inv) {
		w.mu.Unlock()
		return
	}
	p := &Prompt{Invitation: inv, Meta: meta, w: w, done: make(chan struct{})}
	w.active = p
	w.mu.Unlock()

	p.start(w.opts.Timeout)
	log.Infow("incoming call", "invitation", inv.ID, "session", meta.ID, "title", meta.Title)
	if w.opts.OnPrompt != nil {
		w.opts.OnPrompt(p)
	}
}

// release clears p if it is still the active prompt.
func (w *Watcher) release(p *Prompt) {
	w.mu.Lock()
	if w.active == p {
		w.active = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) persist(ctx context.Context, id string, status Status) error {
	if err := w.store.SetInvitationStatus(ctx, id, status); err != nil {
		log.Warnw("persist invitation status failed", "invitation", id, "status", string(status), "err", err)
		return fmt.Errorf("set invitation %s %s: %w", id, status, err)
	}
	return nil
}

// Active returns the current prompt, or nil.
func (w *Watcher) Active() *Prompt {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Close unsubscribes from the feed and dismisses any active prompt. It is
// safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	cancel := w.cancel
	active := w.active
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if active != nil {
		active.Close()
	}
	w.wg.Wait()
}
