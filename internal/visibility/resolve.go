// Package visibility turns one snapshot of roster, pin, screen share and page
// state into the set of participants whose camera should be rendered.
//
// Resolve is a pure function. Callers build a Snapshot once per change and
// hand the resulting View to the subscription controller and layout planner,
// so both always see the same state.
package visibility

import (
	"sort"

	"github.com/Aneesh-Raskar/vemeego/internal/paging"
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
)

// Snapshot is the complete input of one recomputation tick.
type Snapshot struct {
	Roster   []roster.Participant
	Pinned   string
	Primary  paging.Cursor
	Overflow paging.Cursor
}

// View is the result of resolving a Snapshot.
type View struct {
	// Ordered is the full roster in display order.
	Ordered []roster.Participant
	// Pinned is the pinned identity, empty if nobody pinned or the pinned
	// participant is no longer in the roster.
	Pinned string
	// Presenter is the screen-sharing identity, empty if nobody shares.
	Presenter string
	// Eligible is Ordered minus Pinned minus Presenter.
	Eligible []roster.Participant

	Primary        paging.Cursor
	Overflow       paging.Cursor
	PrimaryWindow  []roster.Participant
	OverflowWindow []roster.Participant

	Visible VisibleSet
}

// Resolve computes the View of s. Cursors in the result are clamped against
// the eligible count.
func Resolve(s Snapshot) View {
	ordered := roster.Order(s.Roster)

	v := View{
		Ordered:   ordered,
		Presenter: roster.PresenterOf(ordered),
	}
	if _, ok := roster.Find(ordered, s.Pinned); ok {
		v.Pinned = s.Pinned
	}

	v.Eligible = make([]roster.Participant, 0, len(ordered))
	for _, p := range ordered {
		if p.Identity == v.Pinned || p.Identity == v.Presenter {
			continue
		}
		v.Eligible = append(v.Eligible, p)
	}

	n := len(v.Eligible)
	v.Primary = withSize(s.Primary, paging.PrimaryPageSize).Clamp(n)
	v.Overflow = withSize(s.Overflow, paging.OverflowPageSize).Clamp(n)
	v.PrimaryWindow = paging.Window(v.Eligible, v.Primary)
	v.OverflowWindow = paging.Window(v.Eligible, v.Overflow)

	v.Visible = make(VisibleSet, len(v.PrimaryWindow)+2)
	if v.Pinned != "" {
		v.Visible[v.Pinned] = struct{}{}
	}
	if v.Presenter != "" {
		v.Visible[v.Presenter] = struct{}{}
	}
	for _, p := range v.PrimaryWindow {
		v.Visible[p.Identity] = struct{}{}
	}
	return v
}

func withSize(c paging.Cursor, size int) paging.Cursor {
	if c.Size <= 0 {
		c.Size = size
	}
	return c
}

// VisibleSet is the set of identities whose camera should be subscribed.
type VisibleSet map[string]struct{}

// NewVisibleSet builds a set from identities.
func NewVisibleSet(ids ...string) VisibleSet {
	s := make(VisibleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s VisibleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s VisibleSet) Len() int { return len(s) }

// Equal reports whether both sets hold the same identities.
func (s VisibleSet) Equal(o VisibleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// Identities returns the members sorted.
func (s VisibleSet) Identities() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
