package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is a Source backed by a remote Server.
type Client struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewClient(rawURL string) *Client {
	return &Client{URL: rawURL, Dialer: websocket.DefaultDialer}
}

func (c *Client) endpoint(table string, filter Filter) (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("table", table)
	if filter.Column != "" {
		q.Set("column", filter.Column)
		q.Set("value", filter.Value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) OnInsert(ctx context.Context, table string, filter Filter) (<-chan Insert, func(), error) {
	target, err := c.endpoint(table, filter)
	if err != nil {
		return nil, nil, err
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial feed %s: %w", table, err)
	}
	log.Debugw("feed dialed", "url", strings.SplitN(target, "?", 2)[0], "table", table)

	out := make(chan Insert, 32)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			var in Insert
			if err := conn.ReadJSON(&in); err != nil {
				select {
				case <-done:
				default:
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						log.Warnw("feed read failed", "table", table, "err", err)
					}
				}
				cancel()
				return
			}
			if in.Table != table || !filter.Match(in.Row) {
				continue
			}
			select {
			case out <- in:
			case <-done:
				return
			}
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return out, cancel, nil
}
