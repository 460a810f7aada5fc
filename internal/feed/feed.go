// Package feed is the change feed of the store: every inserted row is
// published to subscribers of its table, optionally narrowed by a column
// equality filter. A Hub serves subscribers in process; Server and Client
// carry the same stream over a websocket.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("feed")

// Insert is one newly inserted row.
type Insert struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
	At    time.Time       `json:"at"`
}

// Decode unmarshals the row into v.
func (in Insert) Decode(v any) error {
	if err := json.Unmarshal(in.Row, v); err != nil {
		return fmt.Errorf("decode %s row: %w", in.Table, err)
	}
	return nil
}

// Filter keeps rows whose Column equals Value. The zero Filter keeps every
// row.
type Filter struct {
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Match reports whether row passes the filter.
func (f Filter) Match(row json.RawMessage) bool {
	if f.Column == "" {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok || v == nil {
		return false
	}
	switch x := v.(type) {
	case string:
		return x == f.Value
	default:
		return fmt.Sprint(x) == f.Value
	}
}

// Source streams inserts of a table. The returned cancel func stops the
// stream, closes the channel and may be called more than once. Cancelling ctx
// has the same effect.
type Source interface {
	OnInsert(ctx context.Context, table string, filter Filter) (<-chan Insert, func(), error)
}
