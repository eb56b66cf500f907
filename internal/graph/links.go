package graph

import (
	"github.com/kyralis/blockflow-go/internal/geom"
)

// Links are addressed by the slot they occupy: the cell the link leaves
// from and the side it crosses. That addressing is what keeps the
// bidirectionality invariant checkable — for every link leaving (at, side)
// the neighbor holds the mirror link at (at.Neighbor(side), side.Reverse()).

// LinkSlot describes one occupied connection of a node.
type LinkSlot struct {
	At       geom.Cell
	Side     geom.Side
	Neighbor *NodeRef
}

// LinkSlots enumerates every occupied connection in deterministic order.
func LinkSlots(n GraphNode) []LinkSlot {
	switch v := n.(type) {
	case *Terminus:
		if v.Neighbor == nil {
			return nil
		}
		return []LinkSlot{{At: v.Pos, Side: v.Side, Neighbor: v.Neighbor}}
	case *Edge:
		var out []LinkSlot
		for _, end := range [2]End{EndBack, EndFront} {
			if l := v.Links[end]; l.Neighbor != nil {
				out = append(out, LinkSlot{At: v.EndPos(end), Side: l.Side, Neighbor: l.Neighbor})
			}
		}
		return out
	case *Junction:
		var out []LinkSlot
		for _, s := range geom.Sides {
			if ref, ok := v.Links[s]; ok {
				out = append(out, LinkSlot{At: v.Pos, Side: s, Neighbor: ref})
			}
		}
		return out
	}
	return nil
}

// HasSpaceAt reports whether n can accept a new link leaving cell at and
// crossing side without violating the capacity invariant.
func HasSpaceAt(n GraphNode, at geom.Cell, side geom.Side) bool {
	switch v := n.(type) {
	case *Terminus:
		return v.Pos == at && v.Neighbor == nil
	case *Edge:
		if at == v.BackPos() && v.Links[EndBack].Neighbor == nil {
			return true
		}
		if at == v.FrontPos() && v.Links[EndFront].Neighbor == nil {
			return true
		}
		return false
	case *Junction:
		if v.Pos != at {
			return false
		}
		_, taken := v.Links[side]
		return !taken
	}
	return false
}

// uniLink fills one slot of n. Callers must have checked HasSpaceAt; a
// false return means the slot was not available after all.
func uniLink(n GraphNode, at geom.Cell, side geom.Side, to *NodeRef) bool {
	switch v := n.(type) {
	case *Terminus:
		if v.Pos != at || v.Neighbor != nil {
			return false
		}
		v.Neighbor = to
		v.Side = side
		return true
	case *Edge:
		// Back fills first on a one-cell edge, matching the upgrade rule
		// that a terminus connection becomes the edge's back end.
		if at == v.BackPos() && v.Links[EndBack].Neighbor == nil {
			v.Links[EndBack] = EdgeLink{Neighbor: to, Side: side}
			return true
		}
		if at == v.FrontPos() && v.Links[EndFront].Neighbor == nil {
			v.Links[EndFront] = EdgeLink{Neighbor: to, Side: side}
			return true
		}
		return false
	case *Junction:
		if v.Pos != at {
			return false
		}
		if _, taken := v.Links[side]; taken {
			return false
		}
		v.Links[side] = to
		return true
	}
	return false
}

// TryBiLink links a→b leaving cell ca and b→a leaving cell cb iff both
// sides have space. No mutation occurs on failure; callers branch on the
// boolean. Non-adjacent cells are a geometry error.
func TryBiLink(a, b *NodeRef, ca, cb geom.Cell) (bool, error) {
	side, err := geom.SideBetween(ca, cb)
	if err != nil {
		return false, err
	}
	an, err := a.Node()
	if err != nil {
		return false, err
	}
	bn, err := b.Node()
	if err != nil {
		return false, err
	}
	if !HasSpaceAt(an, ca, side) {
		return false, nil
	}
	if an == bn {
		// Self-link (closed ring edge): both slots live on one node, so
		// check the second slot directly.
		if !HasSpaceAt(an, cb, side.Reverse()) {
			return false, nil
		}
	} else if !HasSpaceAt(bn, cb, side.Reverse()) {
		return false, nil
	}
	if !uniLink(an, ca, side, b) {
		return false, nil
	}
	if !uniLink(bn, cb, side.Reverse(), a) {
		// Roll back the half link so failure never partially commits.
		unlinkAt(an, ca, side)
		return false, nil
	}
	return true, nil
}

// unlinkAt clears the slot of n at (at, side), returning the former
// neighbor when one was present.
func unlinkAt(n GraphNode, at geom.Cell, side geom.Side) (*NodeRef, bool) {
	switch v := n.(type) {
	case *Terminus:
		if v.Pos == at && v.Neighbor != nil && v.Side == side {
			old := v.Neighbor
			v.Neighbor = nil
			return old, true
		}
	case *Edge:
		for _, end := range [2]End{EndBack, EndFront} {
			l := v.Links[end]
			if l.Neighbor != nil && v.EndPos(end) == at && l.Side == side {
				v.Links[end] = EdgeLink{}
				return l.Neighbor, true
			}
		}
	case *Junction:
		if v.Pos == at {
			if old, ok := v.Links[side]; ok {
				delete(v.Links, side)
				return old, true
			}
		}
	}
	return nil, false
}

// UnlinkSlot removes the bidirectional link occupying slot (at, side) of n:
// the slot itself and its mirror on the neighbor.
func UnlinkSlot(n GraphNode, at geom.Cell, side geom.Side) bool {
	nb, ok := unlinkAt(n, at, side)
	if !ok {
		return false
	}
	if nbNode, err := nb.Node(); err == nil {
		unlinkAt(nbNode, at.Neighbor(side), side.Reverse())
	}
	return true
}

// DetachAll removes every link of n in both directions, used during
// controlled teardown before the node itself is removed.
func DetachAll(n GraphNode) {
	for _, slot := range LinkSlots(n) {
		UnlinkSlot(n, slot.At, slot.Side)
	}
}

// RedirectLink repoints the slot of n at (at, side) to a new ref, keeping
// side bookkeeping intact. Used when a neighbor's representation moves to
// a different node (splitting, crunching).
func RedirectLink(n GraphNode, at geom.Cell, side geom.Side, to *NodeRef) bool {
	switch v := n.(type) {
	case *Terminus:
		if v.Pos == at && v.Neighbor != nil && v.Side == side {
			v.Neighbor = to
			return true
		}
	case *Edge:
		for _, end := range [2]End{EndBack, EndFront} {
			l := v.Links[end]
			if l.Neighbor != nil && v.EndPos(end) == at && l.Side == side {
				v.Links[end].Neighbor = to
				return true
			}
		}
	case *Junction:
		if v.Pos == at {
			if _, ok := v.Links[side]; ok {
				v.Links[side] = to
				return true
			}
		}
	}
	return false
}
