// Package layout decides how the visible tiles are arranged: the grid shape
// for plain grid mode and which participant, if any, takes the hero slot.
package layout

// Shape is a grid of Cols x Rows tiles.
type Shape struct {
	Cols int
	Rows int
}

// Solve maps a tile count to the grid shape used in grid mode. Counts above 9
// never reach the grid directly; paging keeps them away.
func Solve(n int) Shape {
	switch {
	case n <= 0:
		return Shape{0, 0}
	case n == 1:
		return Shape{1, 1}
	case n == 2:
		return Shape{2, 1}
	case n <= 4:
		return Shape{2, 2}
	case n <= 6:
		return Shape{3, 2}
	default:
		return Shape{3, 3}
	}
}
