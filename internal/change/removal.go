package change

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// cellRemoved tears down the graph membership of a cell whose block
// stopped being graph-compatible: the owning node is removed, shrunk or
// partitioned, and the instance is split when the teardown disconnects
// it. An untagged cell is not an error; the cell simply was not part of
// any graph.
func (m *ChangeManager) cellRemoved(pos geom.Cell) error {
	tag, tagged := m.w.TagAt(pos)
	if !tagged {
		return nil
	}
	in, ok := m.mgr.Instance(tag.URI)
	if !ok {
		return fmt.Errorf("%w: instance %v", ErrOrphanTag, tag.URI)
	}
	ref, ok := in.Ref(tag.Node)
	if !ok {
		return fmt.Errorf("%w: %v node %d", ErrOrphanTag, tag.URI, tag.Node)
	}
	n, err := ref.Node()
	if err != nil {
		return err
	}

	// Survivors seed the reachability split afterwards.
	var seeds []*graph.NodeRef

	switch v := n.(type) {
	case *graph.Terminus, *graph.Junction:
		seeds = append(seeds, n.Neighbors()...)
		graph.DetachAll(n)
		if err := in.Remove(ref); err != nil {
			return err
		}
		m.w.ClearTag(pos)

	case *graph.Edge:
		idx, onEdge := v.Contains(pos)
		if !onEdge {
			return fmt.Errorf("%w: tag at %v names edge %d which does not span it", ErrOrphanTag, pos, v.ID)
		}
		switch {
		case len(v.Cells) == 1:
			seeds = append(seeds, n.Neighbors()...)
			graph.DetachAll(n)
			if err := in.Remove(ref); err != nil {
				return err
			}
			m.w.ClearTag(pos)
		case idx == 0:
			seeds = append(seeds, m.shrinkEdge(v, graph.EndBack), ref)
			m.w.ClearTag(pos)
		case idx == len(v.Cells)-1:
			seeds = append(seeds, m.shrinkEdge(v, graph.EndFront), ref)
			m.w.ClearTag(pos)
		default:
			aheadRef, err := m.partitionEdge(in, ref, v, idx)
			if err != nil {
				return err
			}
			m.w.ClearTag(pos)
			// A ring edge partitions into two segments still linked
			// through the old closure; re-crunch folds them back into
			// one open chain.
			if _, err := m.con.CrunchChain(ref); err != nil {
				return err
			}
			seeds = append(seeds, ref, aheadRef)
		}
	}

	if in.NodeCount() == 0 {
		m.mgr.DropInstance(in.URI())
		return nil
	}
	return m.splitDisconnected(in, seeds)
}

// shrinkEdge drops the outermost cell of the given end, unlinking the far
// neighbor that end held. Returns that neighbor (nil if the end was open).
func (m *ChangeManager) shrinkEdge(e *graph.Edge, end graph.End) *graph.NodeRef {
	far := e.Links[end].Neighbor
	if far != nil {
		graph.UnlinkSlot(e, e.EndPos(end), e.Links[end].Side)
	}
	if end == graph.EndBack {
		e.Cells = e.Cells[1:]
	} else {
		e.Cells = e.Cells[:len(e.Cells)-1]
	}
	e.Links[end] = graph.EdgeLink{}
	return far
}

// partitionEdge splits an edge around a removed interior cell into a
// behind segment (keeping the node id) and a new ahead segment, with no
// junction between them and no link across the gap.
func (m *ChangeManager) partitionEdge(in *graph.Instance, ref *graph.NodeRef, e *graph.Edge, idx int) (*graph.NodeRef, error) {
	behindCells := append([]geom.Cell(nil), e.Cells[:idx]...)
	aheadCells := append([]geom.Cell(nil), e.Cells[idx+1:]...)
	frontLink := e.Links[graph.EndFront]

	aheadRef := in.NewEdge(aheadCells, e.Def)
	an, _ := aheadRef.Node()
	ahead := an.(*graph.Edge)
	ahead.Links[graph.EndFront] = frontLink

	e.Cells = behindCells
	e.Links[graph.EndFront] = graph.EdgeLink{}

	if frontLink.Neighbor != nil {
		oldFront := aheadCells[len(aheadCells)-1]
		farAt := oldFront.Neighbor(frontLink.Side)
		farNode, err := frontLink.Neighbor.Node()
		if err != nil {
			return nil, fmt.Errorf("partition edge: far neighbor: %w", err)
		}
		if !graph.RedirectLink(farNode, farAt, frontLink.Side.Reverse(), aheadRef) {
			return nil, fmt.Errorf("partition edge: node %d holds no slot at %v/%v",
				frontLink.Neighbor.ID(), farAt, frontLink.Side.Reverse())
		}
	}

	uri := in.URI()
	for _, cell := range aheadCells {
		m.w.SetTag(cell, world.Tag{URI: uri, Node: aheadRef.ID()})
	}
	return aheadRef, nil
}

// splitDisconnected partitions the instance's survivors into reachability
// components seeded at the nodes that lost a neighbor. Components beyond
// the first move to freshly allocated instances with their cells
// re-tagged.
func (m *ChangeManager) splitDisconnected(in *graph.Instance, seeds []*graph.NodeRef) error {
	var components [][]*graph.NodeRef
	claimed := make(map[*graph.NodeRef]bool)
	for _, seed := range seeds {
		if seed == nil || !seed.Valid() || claimed[seed] {
			continue
		}
		var comp []*graph.NodeRef
		queue := []*graph.NodeRef{seed}
		claimed[seed] = true
		for len(queue) > 0 {
			ref := queue[0]
			queue = queue[1:]
			if !ref.Valid() {
				continue
			}
			comp = append(comp, ref)
			n, _ := ref.Node()
			for _, nb := range n.Neighbors() {
				if !claimed[nb] {
					claimed[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		if len(comp) > 0 {
			components = append(components, comp)
		}
	}

	// The first component keeps the instance; the rest move out.
	for i := 1; i < len(components); i++ {
		fresh, err := m.mgr.NewInstance(in.URI().Type)
		if err != nil {
			return err
		}
		for _, ref := range components[i] {
			id, err := fresh.Adopt(ref, in)
			if err != nil {
				return err
			}
			n, err := ref.Node()
			if err != nil {
				return err
			}
			for _, cell := range n.Positions() {
				m.w.SetTag(cell, world.Tag{URI: fresh.URI(), Node: id})
			}
		}
	}
	return nil
}
