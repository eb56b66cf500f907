// Package world defines the narrow host contracts the graph engine
// consumes: cell block-kind lookup, cell tagging, the block-change event
// source and the simulation clock.
//
// Two implementations are provided: MemoryWorld for tests and one-shot
// runs, and BadgerWorld persisting the grid between CLI invocations.
package world

import (
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// KindEmpty is the kind of a cell with no block.
const KindEmpty graph.BlockKind = ""

// Tag associates a grid cell with the graph node that claims it. Every
// cell of an Edge node carries the same tag.
type Tag struct {
	URI  graph.GraphURI `json:"uri"`
	Node graph.NodeID   `json:"node"`
}

// ChangeHandler observes single-cell block-kind changes (push model).
type ChangeHandler func(oldKind, newKind graph.BlockKind, pos geom.Cell)

// World is the voxel host the engine reads cells from and tags cells in.
type World interface {
	// KindAt returns the block kind occupying a cell, KindEmpty if none.
	KindAt(pos geom.Cell) graph.BlockKind

	// SetKind mutates a cell's block kind and notifies change handlers
	// when the kind actually changes.
	SetKind(pos geom.Cell, kind graph.BlockKind)

	// TagAt returns the node tag attached to a cell.
	TagAt(pos geom.Cell) (Tag, bool)

	// SetTag attaches or replaces a cell's node tag.
	SetTag(pos geom.Cell, tag Tag)

	// ClearTag removes a cell's node tag.
	ClearTag(pos geom.Cell)

	// OnCellChanged registers a change handler. Handlers run synchronously
	// inside SetKind, in registration order.
	OnCellChanged(h ChangeHandler)
}

// Tick is one step of the monotonic simulation clock.
type Tick uint64

// Clock exposes the host's simulation time.
type Clock interface {
	Now() Tick
}

// TickClock is a manually stepped clock for tests and the CLI loop.
type TickClock struct {
	tick Tick
}

// Now returns the current tick.
func (c *TickClock) Now() Tick { return c.tick }

// Advance steps the clock by one tick and returns the new time.
func (c *TickClock) Advance() Tick {
	c.tick++
	return c.tick
}
