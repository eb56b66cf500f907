package graph

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
)

// NodeKind discriminates the three node representations.
type NodeKind uint8

const (
	KindTerminus NodeKind = iota
	KindEdge
	KindJunction
)

// String returns the lowercase kind name.
func (k NodeKind) String() string {
	switch k {
	case KindTerminus:
		return "terminus"
	case KindEdge:
		return "edge"
	case KindJunction:
		return "junction"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Node is the header shared by all representations. Its identity fields
// never change across an upgrade or replace; only the representation
// wrapping it does.
type Node struct {
	ID  NodeID
	URI GraphURI
	Def DefinitionID
}

// GraphNode is the closed sum of the three node representations. Only
// *Terminus, *Edge and *Junction implement it.
type GraphNode interface {
	// Header returns the shared identity header.
	Header() *Node

	// Kind discriminates the representation.
	Kind() NodeKind

	// Positions returns every world cell the node occupies. For Edge the
	// slice is ordered back to front; callers must not mutate it.
	Positions() []geom.Cell

	// ConnectionCount returns the number of occupied link slots.
	ConnectionCount() int

	// Neighbors returns the refs in every occupied link slot.
	Neighbors() []*NodeRef

	sealed()
}

// End names one of an Edge's two link slots.
type End uint8

const (
	EndBack End = iota
	EndFront
)

// Opposite returns the other end.
func (e End) Opposite() End { return e ^ 1 }

// String returns "back" or "front".
func (e End) String() string {
	if e == EndBack {
		return "back"
	}
	return "front"
}

// EdgeLink is one Edge end: the neighbor it connects to (nil while open)
// and the side of the end cell the link crosses.
type EdgeLink struct {
	Neighbor *NodeRef
	Side     geom.Side
}

// Terminus is a degree-≤1 endpoint anchored to a single cell.
type Terminus struct {
	Node
	Pos geom.Cell

	// Neighbor is the sole connection, nil while unconnected. Side is the
	// direction from Pos toward the neighbor and is meaningful only when
	// Neighbor is non-nil.
	Neighbor *NodeRef
	Side     geom.Side
}

// Edge spans a contiguous run of same-definition cells with two logical
// ends. Cells is ordered back to front: Cells[0] is the back cell,
// Cells[len-1] the front cell.
type Edge struct {
	Node
	Cells []geom.Cell
	Links [2]EdgeLink // indexed by End
}

// Junction is anchored to one cell and holds up to six connections keyed
// by side, at most one per side.
type Junction struct {
	Node
	Pos   geom.Cell
	Links map[geom.Side]*NodeRef
}

func (t *Terminus) Header() *Node { return &t.Node }
func (e *Edge) Header() *Node     { return &e.Node }
func (j *Junction) Header() *Node { return &j.Node }

func (t *Terminus) Kind() NodeKind { return KindTerminus }
func (e *Edge) Kind() NodeKind     { return KindEdge }
func (j *Junction) Kind() NodeKind { return KindJunction }

func (t *Terminus) Positions() []geom.Cell { return []geom.Cell{t.Pos} }
func (e *Edge) Positions() []geom.Cell     { return e.Cells }
func (j *Junction) Positions() []geom.Cell { return []geom.Cell{j.Pos} }

func (t *Terminus) ConnectionCount() int {
	if t.Neighbor != nil {
		return 1
	}
	return 0
}

func (e *Edge) ConnectionCount() int {
	n := 0
	for _, l := range e.Links {
		if l.Neighbor != nil {
			n++
		}
	}
	return n
}

func (j *Junction) ConnectionCount() int { return len(j.Links) }

func (t *Terminus) Neighbors() []*NodeRef {
	if t.Neighbor == nil {
		return nil
	}
	return []*NodeRef{t.Neighbor}
}

func (e *Edge) Neighbors() []*NodeRef {
	var out []*NodeRef
	for _, l := range e.Links {
		if l.Neighbor != nil {
			out = append(out, l.Neighbor)
		}
	}
	return out
}

func (j *Junction) Neighbors() []*NodeRef {
	out := make([]*NodeRef, 0, len(j.Links))
	for _, s := range geom.Sides {
		if ref, ok := j.Links[s]; ok {
			out = append(out, ref)
		}
	}
	return out
}

func (t *Terminus) sealed() {}
func (e *Edge) sealed()     {}
func (j *Junction) sealed() {}

// BackPos returns the back end cell.
func (e *Edge) BackPos() geom.Cell { return e.Cells[0] }

// FrontPos returns the front end cell.
func (e *Edge) FrontPos() geom.Cell { return e.Cells[len(e.Cells)-1] }

// EndPos returns the cell of the given end.
func (e *Edge) EndPos(end End) geom.Cell {
	if end == EndBack {
		return e.BackPos()
	}
	return e.FrontPos()
}

// Contains reports whether the edge occupies pos and at which index.
func (e *Edge) Contains(pos geom.Cell) (int, bool) {
	for i, c := range e.Cells {
		if c == pos {
			return i, true
		}
	}
	return 0, false
}

// EndLinkedTo returns the end whose slot holds from, matching the entry
// side when both ends point at the same neighbor (self-linked rings).
func (e *Edge) EndLinkedTo(from *NodeRef, entry geom.Side) (End, bool) {
	for _, end := range [2]End{EndBack, EndFront} {
		l := e.Links[end]
		if l.Neighbor == from && l.Side == entry {
			return end, true
		}
	}
	for _, end := range [2]End{EndBack, EndFront} {
		if e.Links[end].Neighbor == from {
			return end, true
		}
	}
	return 0, false
}

// Capacity returns the maximum number of connections the representation
// can hold: 1 for Terminus, 2 for Edge, 6 for Junction.
func Capacity(n GraphNode) int {
	switch n.Kind() {
	case KindTerminus:
		return 1
	case KindEdge:
		return 2
	default:
		return geom.SideCount
	}
}
