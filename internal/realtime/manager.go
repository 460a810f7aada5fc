package realtime

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
)

var log = logging.Logger("realtime")

// TopicName returns the gossipsub topic carrying topic for sessionID.
func TopicName(sessionID, topic string) string {
	return "/vemeego/session/" + sessionID + "/" + topic
}

// Manager is a Channel over gossipsub. One gossipsub topic is joined per
// application topic of the session; messages this peer published are never
// delivered back to it.
type Manager struct {
	ps        *pubsub.PubSub
	self      peer.ID
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	listenerMu sync.RWMutex
	hs         handlers
}

// NewManager joins and subscribes to every topic in topics.
func NewManager(ctx context.Context, ps *pubsub.PubSub, self peer.ID, sessionID string, topics ...string) (*Manager, error) {
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		ps:        ps,
		self:      self,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
		topics:    make(map[string]*pubsub.Topic),
		subs:      make(map[string]*pubsub.Subscription),
	}
	for _, t := range topics {
		if err := m.Subscribe(t); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) join(topic string) (*pubsub.Topic, error) {
	if t, ok := m.topics[topic]; ok {
		return t, nil
	}
	t, err := m.ps.Join(TopicName(m.sessionID, topic))
	if err != nil {
		return nil, fmt.Errorf("join topic %s: %w", topic, err)
	}
	m.topics[topic] = t
	return t, nil
}

// Subscribe starts delivering packets of topic to the registered handlers.
// Subscribing twice to the same topic is a no-op.
func (m *Manager) Subscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[topic]; ok {
		return nil
	}
	t, err := m.join(topic)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe topic %s: %w", topic, err)
	}
	m.subs[topic] = sub

	m.wg.Add(1)
	go m.readLoop(topic, sub)
	log.Debugw("subscribed", "session", m.sessionID, "topic", topic)
	return nil
}

func (m *Manager) readLoop(topic string, sub *pubsub.Subscription) {
	defer m.wg.Done()
	for {
		msg, err := sub.Next(m.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == m.self || msg.GetFrom() == m.self {
			continue
		}
		pkt := Packet{Data: msg.Data, From: msg.GetFrom().String(), Topic: topic}

		m.listenerMu.RLock()
		hs := m.hs.snapshot()
		m.listenerMu.RUnlock()
		for _, h := range hs {
			h(pkt)
		}
	}
}

func (m *Manager) Publish(ctx context.Context, data []byte, opts PublishOptions) error {
	if opts.Topic == "" {
		return fmt.Errorf("publish: empty topic")
	}
	m.mu.Lock()
	t, err := m.join(opts.Topic)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish %s: %w", opts.Topic, err)
	}
	log.Debugw("published", "session", m.sessionID, "topic", opts.Topic, "bytes", len(data), "reliable", opts.Reliable)
	return nil
}

func (m *Manager) OnData(h Handler) func() {
	m.listenerMu.Lock()
	id := m.hs.add(h)
	m.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			m.hs.remove(id)
			m.listenerMu.Unlock()
		})
	}
}

// Close cancels every subscription and leaves every topic.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	for name, sub := range m.subs {
		sub.Cancel()
		delete(m.subs, name)
	}
	m.mu.Unlock()
	m.wg.Wait()

	m.mu.Lock()
	for name, t := range m.topics {
		if err := t.Close(); err != nil {
			log.Debugw("close topic", "topic", name, "err", err)
		}
		delete(m.topics, name)
	}
	m.mu.Unlock()

	m.listenerMu.Lock()
	m.hs = handlers{}
	m.listenerMu.Unlock()
}
