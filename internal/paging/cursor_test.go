package paging

import "testing"

func TestPageCount(t *testing.T) {
	c := NewPrimary()
	tests := []struct{ n, want int }{
		{0, 0}, {1, 1}, {9, 1}, {10, 2}, {18, 2}, {19, 3},
	}
	for _, tt := range tests {
		if got := c.PageCount(tt.n); got != tt.want {
			t.Fatalf("PageCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		page int
		n    int
		want int
	}{
		{"empty resets", 3, 0, 0},
		{"in range untouched", 1, 12, 1},
		{"past end resets to first page", 4, 12, 0},
		{"last page kept", 1, 12, 1},
		{"single page", 2, 5, 0},
		{"negative", -1, 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cursor{Page: tt.page, Size: PrimaryPageSize}.Clamp(tt.n)
			if got.Page != tt.want {
				t.Fatalf("page = %d, want %d", got.Page, tt.want)
			}
		})
	}
}

func TestWindowSizeNeverExceedsPageSize(t *testing.T) {
	for n := 0; n <= 40; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		for _, c := range []Cursor{NewPrimary(), NewOverflow()} {
			for p := 0; p < 6; p++ {
				w := Window(items, Cursor{Page: p, Size: c.Size})
				if len(w) > c.Size {
					t.Fatalf("n=%d page=%d size=%d: window len %d", n, p, c.Size, len(w))
				}
				if n > 0 && len(w) == 0 {
					t.Fatalf("n=%d page=%d: stranded on an empty page", n, p)
				}
			}
		}
	}
}

func TestWindowContents(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	got := Window(items, Cursor{Page: 1, Size: PrimaryPageSize})
	if len(got) != 2 || got[0] != "j" || got[1] != "k" {
		t.Fatalf("window = %v, want [j k]", got)
	}
}

func TestNextPrev(t *testing.T) {
	c := NewOverflow()
	c = c.Next(20)
	c = c.Next(20)
	if c.Page != 2 {
		t.Fatalf("page = %d, want 2", c.Page)
	}
	c = c.Next(20)
	if c.Page != 2 {
		t.Fatalf("next past end: page = %d, want 2", c.Page)
	}
	c = c.Prev().Prev().Prev()
	if c.Page != 0 {
		t.Fatalf("prev past start: page = %d, want 0", c.Page)
	}
	if got := c.Goto(7, 20); got.Page != 2 {
		t.Fatalf("goto clamp: page = %d, want 2", got.Page)
	}
}
