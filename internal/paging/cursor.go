// Package paging implements the windowing cursors laid over the eligible
// roster. A cursor never errors: a page that falls off the end when the item
// count shrinks resets to the first page, and explicit moves stop at the
// last page.
package paging

const (
	// PrimaryPageSize is the number of tiles in the main grid.
	PrimaryPageSize = 9

	// OverflowPageSize is the number of tiles in the strip under a hero tile.
	OverflowPageSize = 8
)

// Cursor is a page index over a list of a given page size.
type Cursor struct {
	Page int
	Size int
}

// NewPrimary returns a cursor for the main grid.
func NewPrimary() Cursor { return Cursor{Size: PrimaryPageSize} }

// NewOverflow returns a cursor for the overflow strip.
func NewOverflow() Cursor { return Cursor{Size: OverflowPageSize} }

func (c Cursor) size() int {
	if c.Size <= 0 {
		return 1
	}
	return c.Size
}

// PageCount returns ceil(n/size), or 0 when n is 0.
func (c Cursor) PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	s := c.size()
	return (n + s - 1) / s
}

// Clamp returns the cursor with an out-of-range page reset to 0.
func (c Cursor) Clamp(n int) Cursor {
	if c.Page < 0 || c.Page >= c.PageCount(n) {
		c.Page = 0
	}
	return c
}

// stop moves the page into [0, PageCount(n)-1], keeping it on the last page
// when it runs past the end.
func (c Cursor) stop(n int) Cursor {
	pages := c.PageCount(n)
	switch {
	case pages == 0 || c.Page < 0:
		c.Page = 0
	case c.Page >= pages:
		c.Page = pages - 1
	}
	return c
}

// Bounds returns the half-open [start, end) index range of the clamped page.
func (c Cursor) Bounds(n int) (start, end int) {
	c = c.Clamp(n)
	start = c.Page * c.size()
	if start > n {
		start = n
	}
	end = start + c.size()
	if end > n {
		end = n
	}
	return start, end
}

// Next advances one page, staying on the last page.
func (c Cursor) Next(n int) Cursor {
	c.Page++
	return c.stop(n)
}

// Prev goes back one page, staying on the first page.
func (c Cursor) Prev() Cursor {
	if c.Page > 0 {
		c.Page--
	}
	return c
}

// Goto jumps to page p, stopping at the first or last page.
func (c Cursor) Goto(p, n int) Cursor {
	c.Page = p
	return c.stop(n)
}

// Window returns the items of the cursor's clamped page.
func Window[T any](items []T, c Cursor) []T {
	start, end := c.Bounds(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
