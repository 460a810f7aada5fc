package realtime

import (
	"context"
	"errors"
	"testing"
)

func TestLoopbackDeliversToOthersOnly(t *testing.T) {
	bus := NewLoopback()
	a := bus.Endpoint("a")
	b := bus.Endpoint("b")

	var gotA, gotB []Packet
	a.OnData(func(p Packet) { gotA = append(gotA, p) })
	b.OnData(func(p Packet) { gotB = append(gotB, p) })

	if err := a.Publish(context.Background(), []byte("hi"), PublishOptions{Topic: "chat", Reliable: true}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(gotA) != 0 {
		t.Fatalf("publisher got its own packet: %+v", gotA)
	}
	if len(gotB) != 1 || string(gotB[0].Data) != "hi" || gotB[0].From != "a" || gotB[0].Topic != "chat" {
		t.Fatalf("b got %+v", gotB)
	}
}

func TestLoopbackCancelIsIdempotent(t *testing.T) {
	bus := NewLoopback()
	a := bus.Endpoint("a")
	b := bus.Endpoint("b")

	n := 0
	cancel := b.OnData(func(Packet) { n++ })
	other := b.OnData(func(Packet) {})
	cancel()
	cancel()
	if b.Handlers() != 1 {
		t.Fatalf("handlers = %d, want 1", b.Handlers())
	}
	other()

	_ = a.Publish(context.Background(), []byte("x"), PublishOptions{Topic: "chat"})
	if n != 0 {
		t.Fatalf("cancelled handler called %d times", n)
	}
}

func TestLoopbackClosed(t *testing.T) {
	bus := NewLoopback()
	a := bus.Endpoint("a")
	a.Close()
	err := a.Publish(context.Background(), []byte("x"), PublishOptions{Topic: "chat"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestTopicName(t *testing.T) {
	if got := TopicName("s1", "chat"); got != "/vemeego/session/s1/chat" {
		t.Fatalf("TopicName = %q", got)
	}
}
