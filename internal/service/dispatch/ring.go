package dispatch

import "github.com/Temutjin2k/grid-dispatch/internal/domain/models"

// RingCells returns the cells at Chebyshev distance exactly r from center that lie
// inside the grid. Radius 0 is the center itself. For r > 0 the top and bottom rows
// (x+i, y±r), i in [-r, r], come first, then the left and right columns
// (x±r, y+i), i in (-r, r).
func RingCells(center models.Cell, r int, g models.Grid) []models.Cell {
	if r == 0 {
		if g.Contains(center) {
			return []models.Cell{center}
		}
		return nil
	}

	cells := make([]models.Cell, 0, 8*r)
	add := func(c models.Cell) {
		if g.Contains(c) {
			cells = append(cells, c)
		}
	}

	for i := -r; i <= r; i++ {
		add(models.Cell{X: center.X + i, Y: center.Y - r})
		add(models.Cell{X: center.X + i, Y: center.Y + r})
	}
	for i := -r + 1; i < r; i++ {
		add(models.Cell{X: center.X - r, Y: center.Y + i})
		add(models.Cell{X: center.X + r, Y: center.Y + i})
	}
	return cells
}
