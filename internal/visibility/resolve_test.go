package visibility

import (
	"fmt"
	"testing"

	"github.com/Aneesh-Raskar/vemeego/internal/paging"
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
)

func participant(id string, speaking bool, srcs ...roster.Source) roster.Participant {
	p := roster.Participant{Identity: id, Name: id, Speaking: speaking}
	for _, src := range srcs {
		p.Publications = append(p.Publications, roster.NewStaticPublication(id+"-"+src.String(), src))
	}
	return p
}

func ids(ps []roster.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Identity
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolveSimpleRoster(t *testing.T) {
	v := Resolve(Snapshot{
		Roster: []roster.Participant{
			participant("B", false),
			participant("C", false),
			participant("A", true),
		},
	})

	if got := ids(v.Ordered); !sameStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("ordered = %v", got)
	}
	if got := ids(v.PrimaryWindow); !sameStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("primary window = %v", got)
	}
	if got := v.Visible.Identities(); !sameStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("visible = %v", got)
	}
}

func TestResolveExcludesPinnedAndPresenterFromWindows(t *testing.T) {
	v := Resolve(Snapshot{
		Roster: []roster.Participant{
			participant("A", false),
			participant("C", false, roster.SourceCamera, roster.SourceScreenShare),
			participant("D", false, roster.SourceCamera),
			participant("E", false),
		},
		Pinned: "D",
	})

	if v.Presenter != "C" || v.Pinned != "D" {
		t.Fatalf("presenter=%q pinned=%q", v.Presenter, v.Pinned)
	}
	for _, w := range [][]roster.Participant{v.Eligible, v.PrimaryWindow, v.OverflowWindow} {
		for _, p := range w {
			if p.Identity == "C" || p.Identity == "D" {
				t.Fatalf("%s double counted in window %v", p.Identity, ids(w))
			}
		}
	}
	for _, id := range []string{"A", "C", "D", "E"} {
		if !v.Visible.Has(id) {
			t.Fatalf("%s missing from visible set %v", id, v.Visible.Identities())
		}
	}
}

func TestResolveIgnoresStalePin(t *testing.T) {
	v := Resolve(Snapshot{
		Roster: []roster.Participant{participant("A", false)},
		Pinned: "gone",
	})
	if v.Pinned != "" {
		t.Fatalf("pinned = %q, want empty", v.Pinned)
	}
	if v.Visible.Has("gone") {
		t.Fatal("stale pin in visible set")
	}
}

func TestResolveWindowBounds(t *testing.T) {
	for n := 0; n <= 30; n++ {
		ps := make([]roster.Participant, n)
		for i := range ps {
			ps[i] = participant(fmt.Sprintf("p%02d", i), false)
		}
		for page := 0; page < 5; page++ {
			v := Resolve(Snapshot{
				Roster:   ps,
				Primary:  paging.Cursor{Page: page, Size: paging.PrimaryPageSize},
				Overflow: paging.Cursor{Page: page, Size: paging.OverflowPageSize},
			})
			if len(v.PrimaryWindow) > paging.PrimaryPageSize {
				t.Fatalf("n=%d: primary window %d", n, len(v.PrimaryWindow))
			}
			if len(v.OverflowWindow) > paging.OverflowPageSize {
				t.Fatalf("n=%d: overflow window %d", n, len(v.OverflowWindow))
			}
			if pages := v.Primary.PageCount(len(v.Eligible)); pages > 0 && v.Primary.Page >= pages {
				t.Fatalf("n=%d: primary page %d of %d", n, v.Primary.Page, pages)
			}
		}
	}
}

func TestResolveClampsWhenParticipantsLeave(t *testing.T) {
	ps := make([]roster.Participant, 12)
	for i := range ps {
		ps[i] = participant(fmt.Sprintf("p%02d", i), false)
	}
	v := Resolve(Snapshot{Roster: ps, Primary: paging.Cursor{Page: 1, Size: 9}})
	if v.Primary.Page != 1 || len(v.PrimaryWindow) != 3 {
		t.Fatalf("page=%d window=%d", v.Primary.Page, len(v.PrimaryWindow))
	}

	v = Resolve(Snapshot{Roster: ps[:8], Primary: v.Primary})
	if v.Primary.Page != 0 || len(v.PrimaryWindow) != 8 {
		t.Fatalf("after leave: page=%d window=%d", v.Primary.Page, len(v.PrimaryWindow))
	}

	many := make([]roster.Participant, 27)
	for i := range many {
		many[i] = participant(fmt.Sprintf("q%02d", i), false)
	}
	v = Resolve(Snapshot{Roster: many[:12], Primary: paging.Cursor{Page: 2, Size: 9}})
	if v.Primary.Page != 0 || len(v.PrimaryWindow) != 9 {
		t.Fatalf("page off the end: page=%d window=%d", v.Primary.Page, len(v.PrimaryWindow))
	}

	v = Resolve(Snapshot{Primary: paging.Cursor{Page: 2, Size: 9}})
	if v.Primary.Page != 0 || len(v.PrimaryWindow) != 0 {
		t.Fatalf("empty roster: page=%d window=%d", v.Primary.Page, len(v.PrimaryWindow))
	}
}

func TestVisibleSetEqual(t *testing.T) {
	a := NewVisibleSet("x", "y")
	if !a.Equal(NewVisibleSet("y", "x")) {
		t.Fatal("expected equal")
	}
	if a.Equal(NewVisibleSet("x")) || a.Equal(NewVisibleSet("x", "z")) {
		t.Fatal("expected not equal")
	}
}
