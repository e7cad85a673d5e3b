package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

func chebyshev(a, b models.Cell) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestRingCells_Center(t *testing.T) {
	g := models.Grid{Width: 10, Height: 10}
	assert.Equal(t, []models.Cell{{X: 4, Y: 5}}, RingCells(models.Cell{X: 4, Y: 5}, 0, g))
}

func TestRingCells_RadiusOneOrder(t *testing.T) {
	g := models.Grid{Width: 10, Height: 10}
	got := RingCells(models.Cell{X: 5, Y: 5}, 1, g)

	want := []models.Cell{
		{X: 4, Y: 4}, {X: 4, Y: 6},
		{X: 5, Y: 4}, {X: 5, Y: 6},
		{X: 6, Y: 4}, {X: 6, Y: 6},
		{X: 4, Y: 5}, {X: 6, Y: 5},
	}
	assert.Equal(t, want, got)
}

func TestRingCells_ExactRing(t *testing.T) {
	g := models.Grid{Width: 100, Height: 100}
	center := models.Cell{X: 50, Y: 50}

	for r := 1; r <= 20; r++ {
		cells := RingCells(center, r, g)
		assert.Len(t, cells, 8*r, "radius %d", r)

		seen := map[models.Cell]bool{}
		for _, c := range cells {
			assert.Equal(t, r, chebyshev(center, c), "cell %s at radius %d", c, r)
			assert.False(t, seen[c], "duplicate %s", c)
			seen[c] = true
		}
	}
}

func TestRingCells_ClippedAtGridEdge(t *testing.T) {
	g := models.Grid{Width: 5, Height: 5}

	corner := RingCells(models.Cell{X: 0, Y: 0}, 1, g)
	assert.ElementsMatch(t, []models.Cell{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}, corner)

	assert.Empty(t, RingCells(models.Cell{X: 0, Y: 0}, 5, g))
	for _, c := range RingCells(models.Cell{X: 4, Y: 2}, 2, g) {
		assert.True(t, g.Contains(c), c.String())
	}
}
