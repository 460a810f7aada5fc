package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

type row struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	Seats         int    `json:"seats"`
}

func recv(t *testing.T, ch <-chan Insert) Insert {
	t.Helper()
	select {
	case in, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for insert")
	}
	return Insert{}
}

func expectNone(t *testing.T, ch <-chan Insert) {
	t.Helper()
	select {
	case in, ok := <-ch:
		if ok {
			t.Fatalf("unexpected insert %+v", in)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterMatch(t *testing.T) {
	raw := json.RawMessage(`{"participant_id":"u1","seats":3,"gone":null}`)
	tests := []struct {
		f    Filter
		want bool
	}{
		{Filter{}, true},
		{Filter{Column: "participant_id", Value: "u1"}, true},
		{Filter{Column: "participant_id", Value: "u2"}, false},
		{Filter{Column: "seats", Value: "3"}, true},
		{Filter{Column: "gone", Value: ""}, false},
		{Filter{Column: "missing", Value: ""}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Match(raw); got != tt.want {
			t.Fatalf("%+v.Match = %v, want %v", tt.f, got, tt.want)
		}
	}
	if (Filter{Column: "a", Value: "b"}).Match(json.RawMessage("nope")) {
		t.Fatal("matched invalid json")
	}
}

func TestHubFiltersAndCancels(t *testing.T) {
	h := NewHub()
	ch, cancel, err := h.OnInsert(context.Background(), "invitations", Filter{Column: "participant_id", Value: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	_ = h.Publish("invitations", row{ID: "i1", ParticipantID: "u2"})
	_ = h.Publish("messages", row{ID: "m1", ParticipantID: "u1"})
	_ = h.Publish("invitations", row{ID: "i2", ParticipantID: "u1"})

	var got row
	if err := recv(t, ch).Decode(&got); err != nil || got.ID != "i2" {
		t.Fatalf("got %+v err %v", got, err)
	}
	expectNone(t, ch)

	cancel()
	cancel()
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel still open")
	}
}

func TestHubContextCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := h.OnInsert(ctx, "invitations", Filter{})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected insert")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after ctx cancel")
	}
}

func TestServerClientRoundTrip(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(NewServer(h))
	defer srv.Close()

	c := NewClient(srv.URL)
	ch, cancel, err := c.OnInsert(context.Background(), "invitations", Filter{Column: "participant_id", Value: "u1"})
	if err != nil {
		t.Fatalf("OnInsert: %v", err)
	}
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = h.Publish("invitations", row{ID: "i1", ParticipantID: "u2"})
	_ = h.Publish("invitations", row{ID: "i2", ParticipantID: "u1"})

	in := recv(t, ch)
	var got row
	if err := in.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if in.Table != "invitations" || got.ID != "i2" {
		t.Fatalf("got %s %+v", in.Table, got)
	}

	cancel()
	cancel()
	for range ch {
	}
}

func TestServerRejectsMissingTable(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewHub()))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, _, err := c.OnInsert(context.Background(), "", Filter{}); err == nil {
		t.Fatal("dial without table succeeded")
	}
}
