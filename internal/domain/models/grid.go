package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is one discrete unit of the city grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return strconv.Itoa(c.X) + ":" + strconv.Itoa(c.Y)
}

// ParseCell parses the "x:y" form produced by Cell.String.
func ParseCell(s string) (Cell, error) {
	xs, ys, ok := strings.Cut(s, ":")
	if !ok {
		return Cell{}, fmt.Errorf("malformed cell %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Cell{}, fmt.Errorf("malformed cell %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Cell{}, fmt.Errorf("malformed cell %q: %w", s, err)
	}
	return Cell{X: x, Y: y}, nil
}

// Manhattan returns |dx| + |dy| between two cells.
func (c Cell) Manhattan(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Grid is the N×M city. Valid cells are [0,Width) × [0,Height).
type Grid struct {
	Width  int
	Height int
}

func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
