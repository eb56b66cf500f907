// Package change reacts to single-cell block changes, keeping graph
// instances consistent: placements grow or merge graphs via the pairwise
// case analysis over node kinds, removals tear nodes down and split an
// instance when it becomes disconnected.
package change

import (
	"errors"
	"fmt"

	"github.com/kyralis/blockflow-go/internal/build"
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// ErrOrphanTag indicates a cell tag referenced an instance or node the
// registry no longer knows. Internal invariant violation.
var ErrOrphanTag = errors.New("change: cell tag references unknown node")

// ChangeManager is the push-model entry point for block changes.
type ChangeManager struct {
	mgr *graph.Manager
	con *build.Constructor
	w   world.World
}

// NewChangeManager wires a change manager over the shared registry,
// constructor and world.
func NewChangeManager(mgr *graph.Manager, con *build.Constructor, w world.World) *ChangeManager {
	return &ChangeManager{mgr: mgr, con: con, w: w}
}

// Attach registers the manager with the world's change event source.
// Errors surfacing from a change are reported through the returned sink
// callback when non-nil, since handlers have no error channel of their own.
func (m *ChangeManager) Attach(sink func(error)) {
	m.w.OnCellChanged(func(oldKind, newKind graph.BlockKind, pos geom.Cell) {
		if err := m.OnCellChanged(oldKind, newKind, pos); err != nil && sink != nil {
			sink(err)
		}
	})
}

// OnCellChanged processes one cell's block-kind transition. A change from
// one registered kind to another is a removal followed by a placement.
func (m *ChangeManager) OnCellChanged(oldKind, newKind graph.BlockKind, pos geom.Cell) error {
	if _, _, ok := m.mgr.TypeForKind(oldKind); ok {
		if err := m.cellRemoved(pos); err != nil {
			return err
		}
	}
	if _, _, ok := m.mgr.TypeForKind(newKind); ok {
		if err := m.cellPlaced(newKind, pos); err != nil {
			return err
		}
	}
	return nil
}

// cellPlaced handles a cell that just became graph-compatible.
func (m *ChangeManager) cellPlaced(kind graph.BlockKind, pos geom.Cell) error {
	tid, did, ok := m.mgr.TypeForKind(kind)
	if !ok {
		return fmt.Errorf("%w at %v", build.ErrUnregisteredKind, pos)
	}

	// Collect adjacent cells already claimed by a compatible graph.
	var targetCells []geom.Cell
	for _, side := range geom.Sides {
		nc := pos.Neighbor(side)
		if tag, tagged := m.w.TagAt(nc); tagged && tag.URI.Type == tid {
			targetCells = append(targetCells, nc)
		}
	}

	if len(targetCells) == 0 {
		// Nothing to merge with: flood-fill a fresh instance. This also
		// picks up compatible neighbor cells that were never constructed.
		uri, err := m.con.ConstructEntireGraph(pos)
		if err != nil {
			return err
		}
		return m.con.CrunchGraph(uri)
	}

	// All merge targets must live in one instance before linking; absorb
	// foreign instances of the same type into the first target's.
	destURI := m.mustTag(targetCells[0]).URI
	dest, ok := m.mgr.Instance(destURI)
	if !ok {
		return fmt.Errorf("%w: instance %v", ErrOrphanTag, destURI)
	}
	for _, cell := range targetCells[1:] {
		tag := m.mustTag(cell)
		if tag.URI != dest.URI() {
			if err := m.absorb(dest, tag.URI); err != nil {
				return err
			}
		}
	}

	from := dest.NewTerminus(pos, did)
	m.w.SetTag(pos, world.Tag{URI: dest.URI(), Node: from.ID()})

	for _, cell := range targetCells {
		tag := m.mustTag(cell) // re-read: absorption renumbered nodes
		to, ok := m.mgr.Node(tag.URI, tag.Node)
		if !ok {
			return fmt.Errorf("%w: %v node %d", ErrOrphanTag, tag.URI, tag.Node)
		}
		if err := m.mergeInto(from, pos, to, cell); err != nil {
			return err
		}
	}
	return nil
}

func (m *ChangeManager) mustTag(cell geom.Cell) world.Tag {
	tag, _ := m.w.TagAt(cell)
	return tag
}

// absorb transfers every node of the instance behind srcURI into dest,
// re-tagging their cells, then drops the source from the registry.
// NodeRef pointers survive the transfer, so links and outside holders
// stay valid; packets still carrying the dropped URI get ejected at
// delivery time by the stale lookup.
func (m *ChangeManager) absorb(dest *graph.Instance, srcURI graph.GraphURI) error {
	src, ok := m.mgr.Instance(srcURI)
	if !ok {
		return fmt.Errorf("%w: instance %v", ErrOrphanTag, srcURI)
	}
	for _, ref := range src.Refs() {
		id, err := dest.Adopt(ref, src)
		if err != nil {
			return err
		}
		n, err := ref.Node()
		if err != nil {
			return err
		}
		for _, cell := range n.Positions() {
			m.w.SetTag(cell, world.Tag{URI: dest.URI(), Node: id})
		}
	}
	m.mgr.DropInstance(srcURI)
	return nil
}
