package graph

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
)

// Upgrade replaces the referenced node with the next richer representation
// (Terminus→Edge→Junction), preserving id, URI and definition and
// transplanting the existing connections. The swap happens inside the
// NodeRef slot, so every holder observes the new variant transparently.
//
// A Junction cannot be upgraded (ErrCannotUpgrade). Upgrading an Edge that
// spans more than one cell indicates a broken precondition upstream: multi
// cell edges must be split before they can grow a junction.
func (in *Instance) Upgrade(ref *NodeRef) error {
	n, err := ref.Node()
	if err != nil {
		return err
	}
	switch v := n.(type) {
	case *Terminus:
		e := &Edge{Cells: []geom.Cell{v.Pos}}
		if v.Neighbor != nil {
			// The sole terminus connection becomes the edge's back end.
			e.Links[EndBack] = EdgeLink{Neighbor: v.Neighbor, Side: v.Side}
		}
		return in.Replace(ref, e)
	case *Edge:
		if len(v.Cells) != 1 {
			return fmt.Errorf("upgrade edge %d spanning %d cells: must be split first", v.ID, len(v.Cells))
		}
		j := &Junction{Pos: v.Cells[0], Links: make(map[geom.Side]*NodeRef)}
		for _, end := range [2]End{EndBack, EndFront} {
			l := v.Links[end]
			if l.Neighbor == nil {
				continue
			}
			if _, taken := j.Links[l.Side]; taken {
				return fmt.Errorf("upgrade edge %d: both ends cross side %v", v.ID, l.Side)
			}
			j.Links[l.Side] = l.Neighbor
		}
		return in.Replace(ref, j)
	case *Junction:
		return fmt.Errorf("upgrade node %d: %w", v.ID, ErrCannotUpgrade)
	}
	return fmt.Errorf("upgrade node: unknown representation %T", n)
}
