package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type subscriber struct {
	table  string
	filter Filter
	ch     chan Insert
}

// Hub fans inserts out to in-process subscribers. Slow subscribers miss rows
// rather than block the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Publish announces a row inserted into table.
func (h *Hub) Publish(table string, row any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}
	h.PublishRaw(Insert{Table: table, Row: raw, At: time.Now().UTC()})
	return nil
}

// PublishRaw announces an already encoded insert.
func (h *Hub) PublishRaw(in Insert) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for s := range h.subs {
		if s.table != in.Table || !s.filter.Match(in.Row) {
			continue
		}
		select {
		case s.ch <- in:
			delivered++
		default:
			log.Warnw("subscriber slow, insert dropped", "table", in.Table)
		}
	}
	log.Debugw("insert published", "table", in.Table, "delivered", delivered)
}

func (h *Hub) OnInsert(ctx context.Context, table string, filter Filter) (<-chan Insert, func(), error) {
	if table == "" {
		return nil, nil, fmt.Errorf("on insert: empty table")
	}
	s := &subscriber{table: table, filter: filter, ch: make(chan Insert, 32)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, fmt.Errorf("on insert %s: hub closed", table)
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.ch)
			}
			h.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return s.ch, cancel, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}
