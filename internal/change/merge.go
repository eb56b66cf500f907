package change

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// mergeInto connects two adjacent nodes of one instance, from touching at
// fromCell and to at toCell. The behavior is a case analysis over the two
// current node kinds; Edge operands are reduced by splitting a Junction
// out at the touch point, and symmetric cases swap operands. A link that
// still finds no space after reduction is a no-op, not an error.
func (m *ChangeManager) mergeInto(from *graph.NodeRef, fromCell geom.Cell, to *graph.NodeRef, toCell geom.Cell) error {
	fn, err := from.Node()
	if err != nil {
		return err
	}
	tn, err := to.Node()
	if err != nil {
		return err
	}

	switch {
	case fn.Kind() == graph.KindEdge:
		jref, err := m.con.SplitEdge(from, fromCell)
		if err != nil {
			return err
		}
		return m.mergeInto(jref, fromCell, to, toCell)

	case tn.Kind() == graph.KindEdge:
		jref, err := m.con.SplitEdge(to, toCell)
		if err != nil {
			return err
		}
		return m.mergeInto(from, fromCell, jref, toCell)

	case fn.Kind() == graph.KindJunction && tn.Kind() == graph.KindTerminus:
		// Symmetric case: swap operands onto the Terminus↔Junction rule.
		return m.mergeInto(to, toCell, from, fromCell)

	case fn.Kind() == graph.KindTerminus && tn.Kind() == graph.KindTerminus:
		// Give both sides a free end before linking.
		if err := m.freeTerminus(from, fn); err != nil {
			return err
		}
		if err := m.freeTerminus(to, tn); err != nil {
			return err
		}
		return m.linkAndCrunch(from, fromCell, to, toCell)

	case fn.Kind() == graph.KindTerminus && tn.Kind() == graph.KindJunction:
		// The junction's side facing us cannot be occupied: nothing was
		// ever adjacent there. Only the terminus may need room.
		if err := m.freeTerminus(from, fn); err != nil {
			return err
		}
		return m.linkAndCrunch(from, fromCell, to, toCell)

	case fn.Kind() == graph.KindJunction && tn.Kind() == graph.KindJunction:
		_, err := graph.TryBiLink(from, to, fromCell, toCell)
		return err
	}

	return fmt.Errorf("change: unhandled merge pair %v/%v", fn.Kind(), tn.Kind())
}

// freeTerminus upgrades a terminus that already holds its one connection
// to an Edge, opening the front end for the new link.
func (m *ChangeManager) freeTerminus(ref *graph.NodeRef, n graph.GraphNode) error {
	t, ok := n.(*graph.Terminus)
	if !ok || t.Neighbor == nil {
		return nil
	}
	in, ok := m.mgr.Instance(ref.URI())
	if !ok {
		return fmt.Errorf("%w: instance %v", ErrOrphanTag, ref.URI())
	}
	return in.Upgrade(ref)
}

// linkAndCrunch bidirectionally links the pair and re-compacts the chains
// around the new link point.
func (m *ChangeManager) linkAndCrunch(from *graph.NodeRef, fromCell geom.Cell, to *graph.NodeRef, toCell geom.Cell) error {
	ok, err := graph.TryBiLink(from, to, fromCell, toCell)
	if err != nil || !ok {
		return err
	}
	if _, err := m.con.CrunchChain(from); err != nil {
		return err
	}
	if to.Valid() {
		if _, err := m.con.CrunchChain(to); err != nil {
			return err
		}
	}
	return nil
}
