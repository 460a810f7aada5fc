package state

import (
	"testing"

	"github.com/Aneesh-Raskar/vemeego/internal/roster"
)

func drain(ch chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestRosterEvents(t *testing.T) {
	r := NewRoster()
	ch := r.Subscribe()

	r.Upsert(roster.Participant{Identity: "a", Name: "Alice"})
	r.Upsert(roster.Participant{Identity: "a", Name: "Alicia"})
	r.SetSpeaking("a", true)
	r.SetSpeaking("a", true)
	r.SetPublications("a", []roster.Publication{roster.NewStaticPublication("a-cam", roster.SourceCamera)})
	r.Remove("a")
	r.Remove("a")

	want := []EventType{EventJoin, EventUpdate, EventSpeaking, EventPublications, EventLeave}
	got := drain(ch)
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i, e := range got {
		if e.Type != want[i] || e.Identity != "a" {
			t.Fatalf("event %d = %+v, want %s", i, e, want[i])
		}
	}
}

func TestRosterSnapshotKeepsJoinOrder(t *testing.T) {
	r := NewRoster()
	for _, id := range []string{"c", "a", "b"} {
		r.Upsert(roster.Participant{Identity: id})
	}
	r.Remove("a")
	r.Upsert(roster.Participant{Identity: "a"})

	snap := r.Snapshot()
	var ids []string
	for _, p := range snap {
		ids = append(ids, p.Identity)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Fatalf("snapshot order = %v", ids)
	}
}

func TestRosterUnsubscribeIsIdempotent(t *testing.T) {
	r := NewRoster()
	ch := r.Subscribe()
	r.Unsubscribe(ch)
	r.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
}
