package call

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSignalerClosed is returned by Send after Close.
var ErrSignalerClosed = errors.New("call: signaler closed")

const signalWriteWait = 10 * time.Second

// WSSignaler exchanges signals with the SFU over one websocket.
type WSSignaler struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.RWMutex
	listeners map[chan Signal]struct{}
	closed    bool
	done      chan struct{}
}

// DialSignaler connects to the SFU signaling endpoint for sessionID.
func DialSignaler(ctx context.Context, rawURL, sessionID, identity string) (*WSSignaler, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse signal url: %w", err)
	}
	q := u.Query()
	q.Set("session", sessionID)
	q.Set("identity", identity)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling: %w", err)
	}
	return NewWSSignaler(conn), nil
}

// NewWSSignaler takes over conn and starts reading from it.
func NewWSSignaler(conn *websocket.Conn) *WSSignaler {
	s := &WSSignaler{
		conn:      conn,
		listeners: make(map[chan Signal]struct{}),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *WSSignaler) readLoop() {
	defer s.Close()
	for {
		var sig Signal
		if err := s.conn.ReadJSON(&sig); err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warnw("signaling read failed", "err", err)
				}
			}
			return
		}
		if sig.Type == "" {
			continue
		}

		s.mu.RLock()
		for ch := range s.listeners {
			select {
			case ch <- sig:
			default:
				log.Warnw("signal listener slow, dropped", "type", sig.Type)
			}
		}
		s.mu.RUnlock()
	}
}

func (s *WSSignaler) Send(ctx context.Context, sig Signal) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSignalerClosed
	}

	deadline := time.Now().Add(signalWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(sig); err != nil {
		return fmt.Errorf("send %s: %w", sig.Type, err)
	}
	return nil
}

func (s *WSSignaler) Subscribe() (<-chan Signal, func()) {
	ch := make(chan Signal, 64)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close closes the websocket and every subscription. Idempotent.
func (s *WSSignaler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
