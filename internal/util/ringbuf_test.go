package util

import (
	"reflect"
	"testing"
)

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing[int](3)
	if got := r.Items(); len(got) != 0 {
		t.Fatalf("empty ring = %v", got)
	}
	r.Add(1)
	r.Add(2)
	if got, want := r.Items(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i := 3; i <= 5; i++ {
		r.Add(i)
	}
	if got, want := r.Items(), []int{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Fatalf("len = %d, cap = %d", r.Len(), r.Cap())
	}
}

func TestRingMinimumSize(t *testing.T) {
	r := NewRing[string](0)
	r.Add("a")
	r.Add("b")
	if got := r.Items(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("items = %v", got)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/peers/a", "data"); got != "/peers/a/data" {
		t.Fatalf("relative = %q", got)
	}
	if got := ResolvePath("/peers/a", "/var/db"); got != "/var/db" {
		t.Fatalf("absolute = %q", got)
	}
}
