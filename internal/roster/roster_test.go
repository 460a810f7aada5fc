package roster

import "testing"

func identities(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Identity
	}
	return out
}

func equal(a, b []string) bool {
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

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []Participant
		want []string
	}{
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
		{
			name: "speaking first",
			in: []Participant{
				{Identity: "B", Name: "B"},
				{Identity: "C", Name: "C"},
				{Identity: "A", Name: "A", Speaking: true},
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "speaker sorts ahead of alphabetical order",
			in: []Participant{
				{Identity: "a", Name: "alice"},
				{Identity: "z", Name: "zoe", Speaking: true},
			},
			want: []string{"z", "a"},
		},
		{
			name: "case insensitive names",
			in: []Participant{
				{Identity: "1", Name: "bob"},
				{Identity: "2", Name: "Alice"},
				{Identity: "3", Name: "carol"},
			},
			want: []string{"2", "1", "3"},
		},
		{
			name: "identity fallback when name missing",
			in: []Participant{
				{Identity: "zed"},
				{Identity: "amy"},
				{Identity: "x", Name: "Mike"},
			},
			want: []string{"amy", "x", "zed"},
		},
		{
			name: "identity breaks name ties",
			in: []Participant{
				{Identity: "p2", Name: "Sam"},
				{Identity: "p1", Name: "sam"},
			},
			want: []string{"p1", "p2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identities(Order(tt.in))
			if !equal(got, tt.want) {
				t.Fatalf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	in := []Participant{{Identity: "b"}, {Identity: "a"}}
	_ = Order(in)
	if in[0].Identity != "b" {
		t.Fatalf("input reordered: %v", identities(in))
	}
}

func TestPresenterOf(t *testing.T) {
	ps := []Participant{
		{Identity: "a", Publications: []Publication{NewStaticPublication("a-cam", SourceCamera)}},
		{Identity: "b", Publications: []Publication{NewStaticPublication("b-screen", SourceScreenShare)}},
	}
	if got := PresenterOf(ps); got != "b" {
		t.Fatalf("presenter = %q, want b", got)
	}
	if got := PresenterOf(ps[:1]); got != "" {
		t.Fatalf("presenter = %q, want empty", got)
	}
}

func TestParseSourceRoundTrip(t *testing.T) {
	for _, s := range []Source{SourceCamera, SourceScreenShare, SourceMicrophone} {
		if got := ParseSource(s.String()); got != s {
			t.Fatalf("ParseSource(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if got := ParseSource("bogus"); got != SourceUnknown {
		t.Fatalf("ParseSource(bogus) = %v", got)
	}
}
