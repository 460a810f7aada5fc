package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoSFU answers every join with a participant-joined for "bob".
func echoSFU(t *testing.T) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session") != "s1" {
			http.Error(w, "bad session", http.StatusBadRequest)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var sig Signal
			if err := conn.ReadJSON(&sig); err != nil {
				return
			}
			if sig.Type == SignalJoin {
				_ = conn.WriteJSON(Signal{Type: SignalParticipantJoined, Identity: "bob", Name: "Bob"})
			}
		}
	}))
}

func TestWSSignalerRoundTrip(t *testing.T) {
	srv := echoSFU(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sig, err := DialSignaler(context.Background(), wsURL, "s1", "me")
	if err != nil {
		t.Fatalf("DialSignaler: %v", err)
	}
	ch, cancel := sig.Subscribe()
	defer cancel()

	if err := sig.Send(context.Background(), Signal{Type: SignalJoin, Identity: "me"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-ch:
		if got.Type != SignalParticipantJoined || got.Identity != "bob" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signal received")
	}

	if err := sig.Close(); err != nil {
		t.Logf("close: %v", err)
	}
	_ = sig.Close()
	if err := sig.Send(context.Background(), Signal{Type: SignalLeave}); err != ErrSignalerClosed {
		t.Fatalf("Send after Close = %v", err)
	}
	cancel()
}

func TestDialSignalerRejected(t *testing.T) {
	srv := echoSFU(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, err := DialSignaler(context.Background(), wsURL, "other", "me"); err == nil {
		t.Fatal("dial to wrong session succeeded")
	}
}
