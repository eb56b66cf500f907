// Package geom provides the integer grid primitives the graph engine is
// anchored to: 3D cell addresses and the six axis-aligned sides between
// grid-adjacent cells.
package geom

import (
	"errors"
	"fmt"
)

// ErrNotAdjacent indicates SideBetween was called with two cells that do not
// share a face. Callers are expected to only pass adjacent cells; hitting
// this error means a broken precondition upstream.
var ErrNotAdjacent = errors.New("geom: cells are not grid-adjacent")

// Cell is one address in the 3D integer grid.
type Cell struct {
	X, Y, Z int
}

// Add returns the component-wise sum of two cells.
func (c Cell) Add(o Cell) Cell {
	return Cell{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// Neighbor returns the cell one step away along the given side.
func (c Cell) Neighbor(s Side) Cell {
	return c.Add(s.Vec())
}

// AdjacentTo reports whether o shares a face with c.
func (c Cell) AdjacentTo(o Cell) bool {
	_, err := SideBetween(c, o)
	return err == nil
}

// String formats the cell as "(x,y,z)".
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Side is one of the six axis-aligned directions between grid-adjacent cells.
type Side uint8

const (
	Down  Side = iota // -Y
	Up                // +Y
	North             // -Z
	South             // +Z
	West              // -X
	East              // +X

	// SideCount is the number of distinct sides.
	SideCount = 6
)

// Sides lists all six sides in declaration order, for iteration.
var Sides = [SideCount]Side{Down, Up, North, South, West, East}

var sideVecs = [SideCount]Cell{
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
	{-1, 0, 0},
	{1, 0, 0},
}

var sideNames = [SideCount]string{"down", "up", "north", "south", "west", "east"}

// Vec returns the unit offset for the side.
func (s Side) Vec() Cell {
	return sideVecs[s]
}

// Reverse returns the opposite side. Sides are declared in opposing pairs,
// so the opposite is the XOR of the lowest bit.
func (s Side) Reverse() Side {
	return s ^ 1
}

// String returns the lowercase side name.
func (s Side) String() string {
	if int(s) >= len(sideNames) {
		return fmt.Sprintf("side(%d)", uint8(s))
	}
	return sideNames[s]
}

// SideBetween returns the side such that a.Neighbor(side) == b.
// Returns ErrNotAdjacent if the two cells do not share a face.
func SideBetween(a, b Cell) (Side, error) {
	d := Cell{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
	for _, s := range Sides {
		if sideVecs[s] == d {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %v and %v", ErrNotAdjacent, a, b)
}
