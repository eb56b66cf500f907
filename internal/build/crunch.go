package build

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// chainMember is one edge traversed by a race, with the end it was
// entered through (the end facing the race origin).
type chainMember struct {
	ref     *graph.NodeRef
	edge    *graph.Edge
	entered graph.End
}

// raceResult is where a race down one direction of a chain stopped.
type raceResult struct {
	members []chainMember  // same-definition edges traversed, in walk order
	stop    *graph.NodeRef // node the chain stops at; nil when the end is open
	side    geom.Side      // side from the extreme chain cell toward stop
	extreme geom.Cell      // outermost chain cell in this direction
	ring    bool           // the walk closed back onto the starting node
}

// raceDown walks outward from one end of start while the next node is an
// Edge with the identical definition, stopping at a different node, an
// open end, or ring closure onto start.
func raceDown(startRef *graph.NodeRef, start *graph.Edge, dir graph.End) (raceResult, error) {
	var res raceResult
	cur := start
	curRef := startRef
	end := dir
	for {
		link := cur.Links[end]
		res.extreme = cur.EndPos(end)
		if link.Neighbor == nil {
			return res, nil
		}
		if link.Neighbor == startRef {
			res.ring = true
			return res, nil
		}
		next, err := link.Neighbor.Node()
		if err != nil {
			return res, fmt.Errorf("crunch race: %w", err)
		}
		ne, ok := next.(*graph.Edge)
		if !ok || ne.Def != start.Def {
			res.stop = link.Neighbor
			res.side = link.Side
			return res, nil
		}
		enteredEnd, ok := ne.EndLinkedTo(curRef, link.Side.Reverse())
		if !ok {
			return res, fmt.Errorf("crunch race: edge %d holds no link back to %d", ne.ID, cur.ID)
		}
		res.members = append(res.members, chainMember{ref: link.Neighbor, edge: ne, entered: enteredEnd})
		curRef = link.Neighbor
		cur = ne
		end = enteredEnd.Opposite()
	}
}

// walkCells returns a member's cells oriented in walk direction: entering
// at the back end traverses the stored back-to-front order, entering at
// the front traverses it reversed.
func walkCells(m chainMember) []geom.Cell {
	cells := m.edge.Cells
	if m.entered == graph.EndBack {
		return cells
	}
	out := make([]geom.Cell, len(cells))
	for i, c := range cells {
		out[len(cells)-1-i] = c
	}
	return out
}

// CrunchChain compacts the maximal run of same-definition edges
// containing the given edge into a single Edge spanning every cell of the
// run. The compacted edge reuses the starting node's id and ref; all
// other run members are removed and their cells re-tagged. A run whose
// both stop points close onto the start is a ring and yields a
// self-linked edge. Non-edge nodes pass through unchanged.
func (c *Constructor) CrunchChain(ref *graph.NodeRef) (*graph.NodeRef, error) {
	n, err := ref.Node()
	if err != nil {
		return nil, err
	}
	e, ok := n.(*graph.Edge)
	if !ok {
		return ref, nil
	}
	in, ok := c.mgr.Instance(ref.URI())
	if !ok {
		return nil, fmt.Errorf("crunch: no instance %v", ref.URI())
	}

	back, err := raceDown(ref, e, graph.EndBack)
	if err != nil {
		return nil, err
	}
	var front raceResult
	if !back.ring {
		front, err = raceDown(ref, e, graph.EndFront)
		if err != nil {
			return nil, err
		}
	}

	if len(back.members) == 0 && len(front.members) == 0 {
		// Nothing to merge; a lone self-linked ring edge is already
		// maximally compact.
		return ref, nil
	}

	// Assemble the merged cell sequence back-extreme to front-extreme.
	// The backward walk is reversed so its far end comes first.
	var backCells []geom.Cell
	for _, m := range back.members {
		backCells = append(backCells, walkCells(m)...)
	}
	ordered := make([]geom.Cell, 0, len(backCells)+len(e.Cells))
	for i := len(backCells) - 1; i >= 0; i-- {
		ordered = append(ordered, backCells[i])
	}
	ordered = append(ordered, e.Cells...)
	for _, m := range front.members {
		ordered = append(ordered, walkCells(m)...)
	}

	merged := &graph.Edge{Cells: ordered}
	if back.ring {
		// Closed ring: the merged edge links to itself front-to-back.
		backPos, frontPos := ordered[0], ordered[len(ordered)-1]
		sideFB, err := geom.SideBetween(frontPos, backPos)
		if err != nil {
			return nil, fmt.Errorf("crunch ring: %w", err)
		}
		merged.Links[graph.EndFront] = graph.EdgeLink{Neighbor: ref, Side: sideFB}
		merged.Links[graph.EndBack] = graph.EdgeLink{Neighbor: ref, Side: sideFB.Reverse()}
	} else {
		if back.stop != nil {
			merged.Links[graph.EndBack] = graph.EdgeLink{Neighbor: back.stop, Side: back.side}
		}
		if front.stop != nil {
			merged.Links[graph.EndFront] = graph.EdgeLink{Neighbor: front.stop, Side: front.side}
		}
	}

	if err := in.Replace(ref, merged); err != nil {
		return nil, err
	}

	// Repoint the stop nodes' slots from the boundary run members to the
	// merged edge.
	if !back.ring {
		if err := repointStop(back, ref); err != nil {
			return nil, err
		}
		if err := repointStop(front, ref); err != nil {
			return nil, err
		}
	}

	for _, m := range append(back.members, front.members...) {
		if err := in.Remove(m.ref); err != nil {
			return nil, err
		}
	}

	uri := in.URI()
	for _, cell := range ordered {
		c.w.SetTag(cell, world.Tag{URI: uri, Node: ref.ID()})
	}
	return ref, nil
}

// repointStop redirects a stop node's slot facing the chain to the merged
// edge's ref.
func repointStop(r raceResult, merged *graph.NodeRef) error {
	if r.stop == nil {
		return nil
	}
	stopNode, err := r.stop.Node()
	if err != nil {
		return fmt.Errorf("crunch repoint: %w", err)
	}
	at := r.extreme.Neighbor(r.side)
	if !graph.RedirectLink(stopNode, at, r.side.Reverse(), merged) {
		return fmt.Errorf("crunch repoint: node %d holds no slot at %v/%v", r.stop.ID(), at, r.side.Reverse())
	}
	return nil
}

// CrunchGraph compacts every chain in the instance, visiting each node
// once by breadth-expanding across connections from arbitrary unvisited
// starting points.
func (c *Constructor) CrunchGraph(uri graph.GraphURI) error {
	in, ok := c.mgr.Instance(uri)
	if !ok {
		return fmt.Errorf("crunch graph: no instance %v", uri)
	}
	visited := make(map[*graph.NodeRef]bool)
	for _, seed := range in.Refs() {
		if visited[seed] || !seed.Valid() {
			continue
		}
		queue := []*graph.NodeRef{seed}
		visited[seed] = true
		for len(queue) > 0 {
			ref := queue[0]
			queue = queue[1:]
			if !ref.Valid() {
				continue
			}
			if _, err := c.CrunchChain(ref); err != nil {
				return err
			}
			n, err := ref.Node()
			if err != nil {
				continue
			}
			for _, nb := range n.Neighbors() {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}
	return nil
}
