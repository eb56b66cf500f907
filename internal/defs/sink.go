package defs

import (
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// Sink consumes every packet that reaches one of its nodes, whatever the
// representation. Useful as the terminating kind of a network and as a
// stub in tests.
type Sink struct{}

var _ graph.NodeDefinition = (*Sink)(nil)

func (d *Sink) HoldDataFor(node *graph.NodeRef) int { return 1 }

func (d *Sink) DataEnterNode(node *graph.NodeRef, data graph.Carrier, entry geom.Side) {
	if r, ok := data.(visitRecorder); ok {
		r.RecordVisit(node.ID())
	}
}

func (d *Sink) DataEnterNetwork(node *graph.NodeRef, data graph.Carrier) (geom.Side, bool) {
	return 0, false
}

func (d *Sink) ProcessJunction(node *graph.NodeRef, data graph.Carrier, entry geom.Side) (geom.Side, bool) {
	return 0, false
}

func (d *Sink) ProcessEdge(node *graph.NodeRef, data graph.Carrier, entry graph.End) graph.EdgeVerdict {
	return graph.EdgeEject
}

func (d *Sink) ProcessTerminus(node *graph.NodeRef, data graph.Carrier) bool {
	return true
}
