package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/feed"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
)

func newBackend(t *testing.T) (*Client, *feed.Hub) {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hub := feed.NewHub()
	db.SetPublisher(hub)

	mux := http.NewServeMux()
	Register(mux, db, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		db.Close()
	})
	return NewClient(srv.URL + "/"), hub
}

func waitSubscribers(t *testing.T, hub *feed.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientSessionsAndMessages(t *testing.T) {
	c, _ := newBackend(t)
	ctx := context.Background()

	meta, err := c.CreateSession(ctx, "", "Standup", "host")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if meta.ID == "" || meta.Title != "Standup" {
		t.Fatalf("meta = %+v", meta)
	}
	got, err := c.FetchSessionMetadata(ctx, meta.ID)
	if err != nil || got != meta {
		t.Fatalf("FetchSessionMetadata = %+v, %v", got, err)
	}
	if _, err := c.FetchSessionMetadata(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing session err = %v", err)
	}

	msgs, err := c.FetchMessages(ctx, meta.ID)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("empty fetch = %v, %v", msgs, err)
	}
	for _, content := range []string{"one", "two"} {
		if _, err := c.CreateMessage(ctx, meta.ID, chat.Sender{ID: "u1", Name: "Ann"}, content); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}
	msgs, err = c.FetchMessages(ctx, meta.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "one" || msgs[1].SenderName != "Ann" {
		t.Fatalf("msgs = %+v", msgs)
	}

	if _, err := c.CreateMessage(ctx, meta.ID, chat.Sender{ID: "u1"}, "  "); err == nil {
		t.Fatal("blank message accepted")
	}
}

func TestClientInvitationStatus(t *testing.T) {
	c, _ := newBackend(t)
	ctx := context.Background()

	inv, err := c.InsertInvitation(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("InsertInvitation: %v", err)
	}
	if inv.Status != invite.StatusInvited {
		t.Fatalf("status = %s", inv.Status)
	}
	if err := c.SetInvitationStatus(ctx, inv.ID, invite.StatusDeclined); err != nil {
		t.Fatalf("SetInvitationStatus: %v", err)
	}
	got, err := c.GetInvitation(ctx, inv.ID)
	if err != nil || got.Status != invite.StatusDeclined {
		t.Fatalf("GetInvitation = %+v, %v", got, err)
	}
	if err := c.SetInvitationStatus(ctx, inv.ID, "maybe"); err == nil {
		t.Fatal("unknown status accepted")
	}
	if err := c.SetInvitationStatus(ctx, "nope", invite.StatusAccepted); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing invitation err = %v", err)
	}
}

func TestWatcherOverBackend(t *testing.T) {
	c, hub := newBackend(t)
	ctx := context.Background()

	meta, err := c.CreateSession(ctx, "", "Retro", "host")
	if err != nil {
		t.Fatal(err)
	}

	prompts := make(chan *invite.Prompt, 1)
	accepted := make(chan invite.SessionMeta, 1)
	w := invite.NewWatcher(c, c, invite.Options{
		UserID:   "u1",
		Timeout:  time.Minute,
		OnPrompt: func(p *invite.Prompt) { prompts <- p },
		OnAccept: func(_ invite.Invitation, m invite.SessionMeta) { accepted <- m },
	})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()
	waitSubscribers(t, hub, 1)

	if _, err := c.InsertInvitation(ctx, meta.ID, "someone-else"); err != nil {
		t.Fatal(err)
	}
	inv, err := c.InsertInvitation(ctx, meta.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}

	var p *invite.Prompt
	select {
	case p = <-prompts:
	case <-time.After(3 * time.Second):
		t.Fatal("no prompt")
	}
	if p.Invitation.ID != inv.ID || p.Meta.Title != "Retro" {
		t.Fatalf("prompt = %+v", p)
	}
	if err := p.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if m := <-accepted; m.ID != meta.ID {
		t.Fatalf("accepted %+v", m)
	}
	got, err := c.GetInvitation(ctx, inv.ID)
	if err != nil || got.Status != invite.StatusAccepted {
		t.Fatalf("GetInvitation = %+v, %v", got, err)
	}
}
