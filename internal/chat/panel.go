package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Aneesh-Raskar/vemeego/internal/realtime"
)

var log = logging.Logger("chat")

// Topic is the push channel topic chat payloads travel on.
const Topic = "chat"

// ErrEmpty is returned by Send when the draft holds only whitespace.
var ErrEmpty = errors.New("chat: empty message")

// Store is the persistent message store.
type Store interface {
	FetchMessages(ctx context.Context, sessionID string) ([]Message, error)
	CreateMessage(ctx context.Context, sessionID string, sender Sender, content string) (Message, error)
}

// Panel is one chat panel lifetime: it owns the reconciled log, the composer
// draft and the single push channel listener of the panel.
type Panel struct {
	sessionID string
	self      Sender
	store     Store
	ch        realtime.Channel
	log       *Log

	mu      sync.Mutex
	draft   string
	opened  bool
	closed  bool
	dispose func()
}

func NewPanel(sessionID string, self Sender, store Store, ch realtime.Channel) *Panel {
	return &Panel{
		sessionID: sessionID,
		self:      self,
		store:     store,
		ch:        ch,
		log:       NewLog(),
	}
}

func (p *Panel) Log() *Log { return p.log }

func (p *Panel) SessionID() string { return p.sessionID }

// Open attaches the push listener and loads the message history. The
// listener is attached at most once per panel no matter how often Open is
// called; the history is fetched on every call. A failed fetch leaves the
// log unchanged.
func (p *Panel) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("open chat %s: panel closed", p.sessionID)
	}
	if !p.opened {
		p.opened = true
		p.dispose = p.ch.OnData(p.handlePacket)
		log.Debugw("listener attached", "session", p.sessionID)
	}
	p.mu.Unlock()

	msgs, err := p.store.FetchMessages(ctx, p.sessionID)
	if err != nil {
		log.Warnw("fetch messages failed", "session", p.sessionID, "err", err)
		return fmt.Errorf("fetch messages: %w", err)
	}
	p.log.Seed(msgs)
	return nil
}

func (p *Panel) handlePacket(pkt realtime.Packet) {
	if pkt.Topic != "" && pkt.Topic != Topic {
		return
	}
	m, err := DecodePayload(pkt.Data, p.sessionID)
	if err != nil {
		log.Debugw("payload dropped", "session", p.sessionID, "from", pkt.From, "err", err)
		p.log.RecordDrop(Drop{Reason: err.Error(), Size: len(pkt.Data), From: pkt.From})
		return
	}
	p.log.Insert(Event{Origin: OriginPush, Message: m})
}

// SetDraft replaces the composer content.
func (p *Panel) SetDraft(s string) {
	p.mu.Lock()
	p.draft = s
	p.mu.Unlock()
}

func (p *Panel) Draft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Send posts the current draft. The draft is cleared right away and restored
// if the store rejects the message. A failed publish is only logged: the
// message is stored and shows up for the other peers on their next fetch.
func (p *Panel) Send(ctx context.Context) (Message, error) {
	p.mu.Lock()
	content := strings.TrimSpace(p.draft)
	if content == "" {
		p.mu.Unlock()
		return Message{}, ErrEmpty
	}
	p.draft = ""
	p.mu.Unlock()

	m, err := p.store.CreateMessage(ctx, p.sessionID, p.self, content)
	if err != nil {
		p.SetDraft(content)
		log.Warnw("send failed", "session", p.sessionID, "err", err)
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	if data, err := json.Marshal(m); err != nil {
		log.Warnw("encode message", "id", m.ID, "err", err)
	} else if err := p.ch.Publish(ctx, data, realtime.PublishOptions{Reliable: true, Topic: Topic}); err != nil {
		log.Warnw("publish failed", "session", p.sessionID, "id", m.ID, "err", err)
	}

	p.log.Insert(Event{Origin: OriginEcho, Message: m})
	return m, nil
}

// Close detaches the push listener. It is safe to call more than once.
func (p *Panel) Close() {
	p.mu.Lock()
	dispose := p.dispose
	p.dispose = nil
	p.closed = true
	p.mu.Unlock()

	if dispose != nil {
		dispose()
		log.Debugw("listener detached", "session", p.sessionID)
	}
}

// Render returns the display entries of the panel's log.
func (p *Panel) Render() []Entry {
	return p.log.Render(p.self.ID)
}
