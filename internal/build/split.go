package build

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// SplitEdge produces a Junction at a position occupied by the given Edge,
// returning the junction's ref. Three cases:
//
//   - the edge spans one cell: it is replaced in place by a Junction
//     keeping both neighbors (and its id);
//   - the position is an endpoint: the edge shrinks by one cell and a new
//     Junction takes the vacated cell, linked to the old far neighbor and
//     to the shrunk edge;
//   - the position is interior: the edge is partitioned into a behind
//     segment (reusing the original id), the Junction, and a newly
//     allocated ahead segment.
//
// External neighbors and their recorded link sides are preserved in all
// cases. Splitting at a position the edge does not occupy is an internal
// invariant violation.
func (c *Constructor) SplitEdge(ref *graph.NodeRef, at geom.Cell) (*graph.NodeRef, error) {
	n, err := ref.Node()
	if err != nil {
		return nil, err
	}
	e, ok := n.(*graph.Edge)
	if !ok {
		return nil, fmt.Errorf("%w: node %d is a %v", ErrNotAnEdge, n.Header().ID, n.Kind())
	}
	idx, ok := e.Contains(at)
	if !ok {
		return nil, fmt.Errorf("%w: %v not on edge %d", ErrSplitOutside, at, e.ID)
	}
	in, ok := c.mgr.Instance(ref.URI())
	if !ok {
		return nil, fmt.Errorf("split: no instance %v", ref.URI())
	}

	if len(e.Cells) == 1 {
		return c.replaceWithJunction(in, ref, e)
	}
	switch idx {
	case 0:
		return c.splitEndpoint(in, ref, e, graph.EndBack)
	case len(e.Cells) - 1:
		return c.splitEndpoint(in, ref, e, graph.EndFront)
	default:
		return c.splitInterior(in, ref, e, idx)
	}
}

// replaceWithJunction swaps a one-cell edge for a Junction in place,
// keeping both neighbors and the node id.
func (c *Constructor) replaceWithJunction(in *graph.Instance, ref *graph.NodeRef, e *graph.Edge) (*graph.NodeRef, error) {
	j := &graph.Junction{Pos: e.Cells[0], Links: make(map[geom.Side]*graph.NodeRef)}
	for _, end := range [2]graph.End{graph.EndBack, graph.EndFront} {
		l := e.Links[end]
		if l.Neighbor == nil {
			continue
		}
		if _, taken := j.Links[l.Side]; taken {
			return nil, fmt.Errorf("split edge %d: both ends cross side %v", e.ID, l.Side)
		}
		j.Links[l.Side] = l.Neighbor
	}
	if err := in.Replace(ref, j); err != nil {
		return nil, err
	}
	return ref, nil
}

// splitEndpoint shrinks the edge by one cell from the given end and puts
// a Junction on the vacated cell.
func (c *Constructor) splitEndpoint(in *graph.Instance, ref *graph.NodeRef, e *graph.Edge, end graph.End) (*graph.NodeRef, error) {
	at := e.EndPos(end)
	far := e.Links[end] // may be open

	var remaining []geom.Cell
	if end == graph.EndBack {
		remaining = e.Cells[1:]
	} else {
		remaining = e.Cells[:len(e.Cells)-1]
	}
	newEndCell := remaining[0]
	if end == graph.EndFront {
		newEndCell = remaining[len(remaining)-1]
	}
	sideToJunction, err := geom.SideBetween(newEndCell, at)
	if err != nil {
		return nil, fmt.Errorf("split endpoint: %w", err)
	}

	jref := in.NewJunction(at, e.Def)
	jn, _ := jref.Node()
	j := jn.(*graph.Junction)

	e.Cells = remaining
	e.Links[end] = graph.EdgeLink{Neighbor: jref, Side: sideToJunction}
	j.Links[sideToJunction.Reverse()] = ref

	if far.Neighbor != nil {
		j.Links[far.Side] = far.Neighbor
		if err := redirectFar(far, at, jref); err != nil {
			return nil, err
		}
	}

	c.w.SetTag(at, world.Tag{URI: in.URI(), Node: jref.ID()})
	return jref, nil
}

// splitInterior partitions the edge around an interior cell: behind keeps
// the original id, ahead is newly allocated, the Junction sits between.
func (c *Constructor) splitInterior(in *graph.Instance, ref *graph.NodeRef, e *graph.Edge, idx int) (*graph.NodeRef, error) {
	behindCells := append([]geom.Cell(nil), e.Cells[:idx]...)
	aheadCells := append([]geom.Cell(nil), e.Cells[idx+1:]...)
	at := e.Cells[idx]
	frontLink := e.Links[graph.EndFront]

	jref := in.NewJunction(at, e.Def)
	jn, _ := jref.Node()
	j := jn.(*graph.Junction)

	aheadRef := in.NewEdge(aheadCells, e.Def)
	an, _ := aheadRef.Node()
	ahead := an.(*graph.Edge)

	sideBehind, err := geom.SideBetween(at, behindCells[len(behindCells)-1])
	if err != nil {
		return nil, fmt.Errorf("split interior: %w", err)
	}
	sideAhead, err := geom.SideBetween(at, aheadCells[0])
	if err != nil {
		return nil, fmt.Errorf("split interior: %w", err)
	}

	// Behind segment: same node, trimmed cells, front end now faces the
	// junction. The back link is untouched.
	e.Cells = behindCells
	e.Links[graph.EndFront] = graph.EdgeLink{Neighbor: jref, Side: sideBehind.Reverse()}

	// Ahead segment: back end faces the junction, front end inherits the
	// old far link.
	ahead.Links[graph.EndBack] = graph.EdgeLink{Neighbor: jref, Side: sideAhead.Reverse()}
	ahead.Links[graph.EndFront] = frontLink

	j.Links[sideBehind] = ref
	j.Links[sideAhead] = aheadRef

	if frontLink.Neighbor != nil {
		oldFront := aheadCells[len(aheadCells)-1]
		farAt := oldFront.Neighbor(frontLink.Side)
		farNode, err := frontLink.Neighbor.Node()
		if err != nil {
			return nil, fmt.Errorf("split interior: far neighbor: %w", err)
		}
		if !graph.RedirectLink(farNode, farAt, frontLink.Side.Reverse(), aheadRef) {
			return nil, fmt.Errorf("split interior: node %d holds no slot at %v/%v",
				frontLink.Neighbor.ID(), farAt, frontLink.Side.Reverse())
		}
	}

	uri := in.URI()
	c.w.SetTag(at, world.Tag{URI: uri, Node: jref.ID()})
	for _, cell := range aheadCells {
		c.w.SetTag(cell, world.Tag{URI: uri, Node: aheadRef.ID()})
	}
	return jref, nil
}

// redirectFar repoints the far neighbor's slot facing the vacated cell at
// a freshly created junction.
func redirectFar(far graph.EdgeLink, vacated geom.Cell, jref *graph.NodeRef) error {
	farNode, err := far.Neighbor.Node()
	if err != nil {
		return fmt.Errorf("split: far neighbor: %w", err)
	}
	farAt := vacated.Neighbor(far.Side)
	if !graph.RedirectLink(farNode, farAt, far.Side.Reverse(), jref) {
		return fmt.Errorf("split: node %d holds no slot at %v/%v", far.Neighbor.ID(), farAt, far.Side.Reverse())
	}
	return nil
}
