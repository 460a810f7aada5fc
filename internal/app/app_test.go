package app

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Aneesh-Raskar/vemeego/internal/backend"
	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/config"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/layout"
	"github.com/Aneesh-Raskar/vemeego/internal/realtime"
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitOutput(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", want, b.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"hello there", "", "hello there"},
		{"  /PIN  u2 ", "pin", "u2"},
		{"/next", "next", ""},
		{"/page 3", "page", "3"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, arg := parseCommand(tt.line)
		if name != tt.name || arg != tt.arg {
			t.Errorf("parseCommand(%q) = %q, %q; want %q, %q", tt.line, name, arg, tt.name, tt.arg)
		}
	}
}

func TestFormatPlan(t *testing.T) {
	grid := layout.RenderPlan{
		Mode:      layout.ModeGrid,
		Shape:     layout.Shape{Cols: 2, Rows: 1},
		Page:      1,
		PageCount: 2,
		Tiles: []layout.Tile{
			{Identity: "u1", Name: "Ann", Local: true, HasVideo: true, HasAudio: true},
			{Identity: "u2", Name: "Bob", Speaking: true, HasAudio: true},
		},
	}
	got := formatPlan(grid)
	for _, want := range []string{"grid 2x1", "page 2/2", "Ann (you)\n", "Bob [speaking, no video]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("grid plan missing %q:\n%s", want, got)
		}
	}

	hero := layout.Tile{Identity: "u3", Name: "Cy", HasVideo: true, HasAudio: true}
	presenting := layout.RenderPlan{Mode: layout.ModePresenting, HeroScreen: true, HeroTile: &hero}
	if got := formatPlan(presenting); !strings.Contains(got, "── presenting") || !strings.Contains(got, "hero screen: Cy") {
		t.Fatalf("presenting plan:\n%s", got)
	}
}

func TestConsoleSkipsRepeatedPlan(t *testing.T) {
	var b syncBuffer
	c := newConsole(&b)
	p := layout.RenderPlan{Mode: layout.ModeGrid}
	c.printPlan(p)
	c.printPlan(p)
	if n := strings.Count(b.String(), "── grid"); n != 1 {
		t.Fatalf("printed %d times", n)
	}
}

func TestPromptInteractive(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("u9\nZed\n\n\nabc\n4001\nn\n")
	cfg := PromptInteractive(in, &out, "/peers/a", "/peers/a/vemeego.json", config.Default())

	if cfg.Identity.UserID != "u9" || cfg.Identity.DisplayName != "Zed" {
		t.Fatalf("identity = %+v", cfg.Identity)
	}
	if cfg.P2P.ListenPort != 4001 || cfg.P2P.MDNS {
		t.Fatalf("p2p = %+v", cfg.P2P)
	}
	if !strings.Contains(out.String(), "Please enter a number.") {
		t.Fatalf("no retry prompt:\n%s", out.String())
	}

	bad := PromptInteractive(strings.NewReader("u9\n\nftp://nope\n"), &out, "d", "c", config.Default())
	if bad.Identity.UserID != "" {
		t.Fatalf("invalid setup kept: %+v", bad.Identity)
	}
}

func TestMeetingOverFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- serveFeed(ctx, ln, db) }()
	if err := WaitTCP(ln.Addr().String(), 2*time.Second); err != nil {
		t.Fatal(err)
	}

	client := backend.NewClient("http://" + ln.Addr().String())
	meta, err := client.CreateSession(ctx, "s1", "Standup", "u1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	bus := realtime.NewLoopback()
	deps := func(id, name string, out *syncBuffer) meetingDeps {
		return meetingDeps{
			self:  roster.Participant{Identity: id, Name: name},
			store: client,
			con:   newConsole(out),
			channel: func(context.Context, string) (realtime.Channel, func(), error) {
				ep := bus.Endpoint(id)
				return ep, ep.Close, nil
			},
		}
	}

	var annOut, bobOut syncBuffer
	ann, err := joinMeeting(ctx, meta, deps("u1", "Ann", &annOut))
	if err != nil {
		t.Fatalf("ann join: %v", err)
	}
	bob, err := joinMeeting(ctx, meta, deps("u2", "Bob", &bobOut))
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	waitOutput(t, &annOut, "Ann (you)")

	if ann.handle(ctx, "hello team") {
		t.Fatal("chat line ended the meeting")
	}
	waitOutput(t, &annOut, "You: hello team")
	waitOutput(t, &bobOut, "Ann: hello team")

	ann.handle(ctx, "/pin u1")
	waitOutput(t, &annOut, "── pinned")

	ann.handle(ctx, "/bogus")
	waitOutput(t, &annOut, "/leave")

	if !ann.handle(ctx, "/leave") {
		t.Fatal("/leave did not end the meeting")
	}
	ann.leave()
	ann.leave()
	bob.leave()

	msgs, err := client.FetchMessages(ctx, "s1")
	if err != nil || len(msgs) != 1 || msgs[0].SenderName != "Ann" {
		t.Fatalf("stored = %+v, %v", msgs, err)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serveFeed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
}

type historyStore struct {
	msgs []chat.Message
}

func (s *historyStore) FetchMessages(context.Context, string) ([]chat.Message, error) {
	return s.msgs, nil
}

func (s *historyStore) CreateMessage(_ context.Context, sessionID string, sender chat.Sender, content string) (chat.Message, error) {
	m := chat.Message{ID: fmt.Sprintf("new-%d", len(s.msgs)), SessionID: sessionID, SenderID: sender.ID, SenderName: sender.Name, Content: content, CreatedAt: time.Now()}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func TestMeetingPrintsFullHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &historyStore{}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		store.msgs = append(store.msgs, chat.Message{
			ID:         fmt.Sprintf("m%03d", i),
			SessionID:  "s1",
			SenderID:   "u2",
			SenderName: "Bob",
			Content:    fmt.Sprintf("line %03d", i),
			CreatedAt:  start.Add(time.Duration(i) * time.Second),
		})
	}

	var out syncBuffer
	bus := realtime.NewLoopback()
	m, err := joinMeeting(ctx, invite.SessionMeta{ID: "s1", Title: "Standup"}, meetingDeps{
		self:  roster.Participant{Identity: "u1", Name: "Ann"},
		store: store,
		con:   newConsole(&out),
		channel: func(context.Context, string) (realtime.Channel, func(), error) {
			ep := bus.Endpoint("u1")
			return ep, ep.Close, nil
		},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer m.leave()

	waitOutput(t, &out, "Bob: line 099")
	if n := strings.Count(out.String(), "Bob: line "); n != 100 {
		t.Fatalf("printed %d history lines, want 100", n)
	}
}
