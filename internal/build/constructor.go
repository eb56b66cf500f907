// Package build implements the graph rewriting algorithms: flood-fill
// construction from a seed cell, on-demand node upgrades via force-link,
// chain compaction ("crunch") and edge splitting.
//
// All operations run to completion on the host's update thread; each
// either finishes its full topology rewrite or aborts without mutating
// state.
package build

import (
	"errors"
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// Sentinel errors for construction and rewriting.
var (
	// ErrUnregisteredKind indicates a seed or frontier cell holds a block
	// kind no graph type knows about.
	ErrUnregisteredKind = errors.New("build: block kind not registered with any graph type")

	// ErrFrontierCorrupt indicates the flood-fill frontier produced a cell
	// that already belongs to the instance under construction. This is an
	// internal invariant violation, not a user-facing condition.
	ErrFrontierCorrupt = errors.New("build: frontier cell already belongs to this instance")

	// ErrNotAnEdge indicates a chain or split operation was handed a node
	// that is not an Edge.
	ErrNotAnEdge = errors.New("build: node is not an edge")

	// ErrSplitOutside indicates an edge split was requested at a position
	// the edge does not occupy. Internal invariant violation.
	ErrSplitOutside = errors.New("build: split position not on edge")
)

// Constructor builds and rewrites graph instances against a host world.
type Constructor struct {
	mgr *graph.Manager
	w   world.World
}

// NewConstructor creates a constructor over the given registry and world.
func NewConstructor(mgr *graph.Manager, w world.World) *Constructor {
	return &Constructor{mgr: mgr, w: w}
}

// Manager returns the registry the constructor builds into.
func (c *Constructor) Manager() *graph.Manager { return c.mgr }

// ConstructEntireGraph flood-fills a new graph instance starting from the
// seed cell and returns its URI.
//
// Every reached cell becomes a Terminus node force-linked to its already
// visited neighbors (upgrading either side as capacity demands). Cells
// belonging to a different instance of the same type are left alone; they
// signal a future merge and are not followed.
func (c *Constructor) ConstructEntireGraph(seed geom.Cell) (graph.GraphURI, error) {
	kind := c.w.KindAt(seed)
	tid, _, ok := c.mgr.TypeForKind(kind)
	if !ok {
		return graph.GraphURI{}, fmt.Errorf("%w: %q at %v", ErrUnregisteredKind, kind, seed)
	}
	gt, _ := c.mgr.GraphType(tid)

	in, err := c.mgr.NewInstance(tid)
	if err != nil {
		return graph.GraphURI{}, err
	}
	uri := in.URI()

	frontier := []geom.Cell{seed}
	queued := map[geom.Cell]bool{seed: true}

	for len(frontier) > 0 {
		cell := frontier[0]
		frontier = frontier[1:]

		if tag, tagged := c.w.TagAt(cell); tagged {
			if tag.URI == uri {
				return graph.GraphURI{}, fmt.Errorf("%w: %v", ErrFrontierCorrupt, cell)
			}
			// Different instance of the same type: merge opportunity,
			// handled by the change manager, not followed here.
			continue
		}

		def, ok := gt.DefinitionFor(c.w.KindAt(cell))
		if !ok {
			return graph.GraphURI{}, fmt.Errorf("%w: frontier cell %v", ErrUnregisteredKind, cell)
		}

		ref := in.NewTerminus(cell, def)
		c.w.SetTag(cell, world.Tag{URI: uri, Node: ref.ID()})

		for _, side := range geom.Sides {
			nc := cell.Neighbor(side)
			if tag, tagged := c.w.TagAt(nc); tagged && tag.URI == uri {
				nref, ok := in.Ref(tag.Node)
				if !ok {
					return graph.GraphURI{}, fmt.Errorf("build: tag at %v names unknown node %d", nc, tag.Node)
				}
				if _, err := c.tryForceLink(ref, cell, nref, nc); err != nil {
					return graph.GraphURI{}, err
				}
				continue
			}
			if _, ok := gt.DefinitionFor(c.w.KindAt(nc)); !ok {
				continue
			}
			if queued[nc] {
				continue
			}
			queued[nc] = true
			frontier = append(frontier, nc)
		}
	}

	return uri, nil
}

// tryForceLink links two adjacent existing nodes, upgrading whichever
// side lacks space until both can hold the link. Reports false without
// mutating when a participant is already a full Junction (or otherwise
// cannot grow).
func (c *Constructor) tryForceLink(a *graph.NodeRef, ca geom.Cell, b *graph.NodeRef, cb geom.Cell) (bool, error) {
	side, err := geom.SideBetween(ca, cb)
	if err != nil {
		return false, err
	}
	for {
		ok, err := graph.TryBiLink(a, b, ca, cb)
		if err != nil || ok {
			return ok, err
		}
		upgraded := false
		if up, err := c.upgradeIfBlocked(a, ca, side); err != nil {
			return false, err
		} else if up {
			upgraded = true
		}
		if up, err := c.upgradeIfBlocked(b, cb, side.Reverse()); err != nil {
			return false, err
		} else if up {
			upgraded = true
		}
		if !upgraded {
			return false, nil
		}
	}
}

// upgradeIfBlocked upgrades ref when it cannot take a new link at
// (at, side). Returns whether an upgrade happened; a blocked but
// non-upgradeable node (full Junction) reports false with no error.
func (c *Constructor) upgradeIfBlocked(ref *graph.NodeRef, at geom.Cell, side geom.Side) (bool, error) {
	n, err := ref.Node()
	if err != nil {
		return false, err
	}
	if graph.HasSpaceAt(n, at, side) {
		return false, nil
	}
	if n.Kind() == graph.KindJunction {
		return false, nil
	}
	in, ok := c.mgr.Instance(ref.URI())
	if !ok {
		return false, fmt.Errorf("build: no instance %v for node %d", ref.URI(), ref.ID())
	}
	if err := in.Upgrade(ref); err != nil {
		return false, err
	}
	return true, nil
}
