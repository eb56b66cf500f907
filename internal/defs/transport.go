// Package defs ships the built-in node behaviors: Transport moves
// packets through a network preferring straight lines, Sink consumes
// whatever reaches it. Hosts register their own graph.NodeDefinition
// implementations alongside these.
package defs

import (
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// visitRecorder is implemented by carriers that keep a movement trace.
type visitRecorder interface {
	RecordVisit(graph.NodeID)
}

// Transport is a pass-through behavior: packets continue along edges,
// cross junctions preferring the straight-through side, and leave the
// network at termini. Hold time grows with the node's cell span, so a
// long edge takes proportionally longer to traverse.
type Transport struct {
	// TicksPerCell is the hold contribution of each cell the node spans.
	// Zero means one tick per cell.
	TicksPerCell int
}

var _ graph.NodeDefinition = (*Transport)(nil)

// HoldDataFor returns the traversal time: TicksPerCell for every cell
// the node occupies, at least one tick.
func (d *Transport) HoldDataFor(node *graph.NodeRef) int {
	per := d.TicksPerCell
	if per < 1 {
		per = 1
	}
	n, err := node.Node()
	if err != nil {
		return 1
	}
	return per * len(n.Positions())
}

// DataEnterNode records the arrival on tracing carriers.
func (d *Transport) DataEnterNode(node *graph.NodeRef, data graph.Carrier, entry geom.Side) {
	if r, ok := data.(visitRecorder); ok {
		r.RecordVisit(node.ID())
	}
}

// DataEnterNetwork routes a freshly inserted packet out of the first
// occupied slot, in fixed side order.
func (d *Transport) DataEnterNetwork(node *graph.NodeRef, data graph.Carrier) (geom.Side, bool) {
	if r, ok := data.(visitRecorder); ok {
		r.RecordVisit(node.ID())
	}
	n, err := node.Node()
	if err != nil {
		return 0, false
	}
	for _, slot := range graph.LinkSlots(n) {
		if slot.Neighbor != nil {
			return slot.Side, true
		}
	}
	return 0, false
}

// ProcessJunction exits straight through when that side is connected,
// otherwise takes the first other connected side, otherwise doubles back
// the way it came.
func (d *Transport) ProcessJunction(node *graph.NodeRef, data graph.Carrier, entry geom.Side) (geom.Side, bool) {
	n, err := node.Node()
	if err != nil {
		return 0, false
	}
	j, ok := n.(*graph.Junction)
	if !ok {
		return 0, false
	}
	straight := entry.Reverse()
	if _, linked := j.Links[straight]; linked {
		return straight, true
	}
	for _, side := range geom.Sides {
		if side == entry || side == straight {
			continue
		}
		if _, linked := j.Links[side]; linked {
			return side, true
		}
	}
	if _, linked := j.Links[entry]; linked {
		return entry, true
	}
	return 0, false
}

// ProcessEdge always continues out of the opposite end.
func (d *Transport) ProcessEdge(node *graph.NodeRef, data graph.Carrier, entry graph.End) graph.EdgeVerdict {
	return graph.EdgeContinue
}

// ProcessTerminus ejects the packet: a transport line end is where cargo
// leaves the network.
func (d *Transport) ProcessTerminus(node *graph.NodeRef, data graph.Carrier) bool {
	return true
}
