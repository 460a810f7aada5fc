package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/feed"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

// Client talks to a backend started with Register. It is a chat.Store, an
// invite.Store and a feed.Source.
type Client struct {
	base string
	http *http.Client
	feed *feed.Client
}

func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		base: base,
		http: &http.Client{Timeout: 2 * util.DefaultFetchTimeout},
		feed: feed.NewClient(base + FeedPath),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, storage.ErrNotFound)
	}
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, id, title, hostID string) (invite.SessionMeta, error) {
	var meta invite.SessionMeta
	err := c.do(ctx, http.MethodPost, "/api/sessions", createSessionReq{ID: id, Title: title, HostID: hostID}, &meta)
	return meta, err
}

func (c *Client) FetchSessionMetadata(ctx context.Context, id string) (invite.SessionMeta, error) {
	var meta invite.SessionMeta
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &meta)
	return meta, err
}

func (c *Client) FetchMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID)+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) CreateMessage(ctx context.Context, sessionID string, sender chat.Sender, content string) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/messages",
		createMessageReq{SenderID: sender.ID, SenderName: sender.Name, Content: content}, &m)
	return m, err
}

func (c *Client) InsertInvitation(ctx context.Context, sessionID, participantID string) (invite.Invitation, error) {
	var inv invite.Invitation
	err := c.do(ctx, http.MethodPost, "/api/invitations",
		createInvitationReq{SessionID: sessionID, ParticipantID: participantID}, &inv)
	return inv, err
}

func (c *Client) GetInvitation(ctx context.Context, id string) (invite.Invitation, error) {
	var inv invite.Invitation
	err := c.do(ctx, http.MethodGet, "/api/invitations/"+url.PathEscape(id), nil, &inv)
	return inv, err
}

func (c *Client) SetInvitationStatus(ctx context.Context, id string, status invite.Status) error {
	return c.do(ctx, http.MethodPut, "/api/invitations/"+url.PathEscape(id)+"/status", statusReq{Status: status}, nil)
}

func (c *Client) OnInsert(ctx context.Context, table string, filter feed.Filter) (<-chan feed.Insert, func(), error) {
	return c.feed.OnInsert(ctx, table, filter)
}
