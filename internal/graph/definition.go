package graph

import (
	"github.com/kyralis/blockflow-go/internal/geom"
)

// EdgeVerdict is the routing outcome for a packet traversing an Edge.
type EdgeVerdict uint8

const (
	// EdgeContinue sends the packet out of the opposite end.
	EdgeContinue EdgeVerdict = iota
	// EdgeReverse sends the packet back out of the end it entered.
	EdgeReverse
	// EdgeEject removes the packet from the network.
	EdgeEject
)

// PositionState is the graph-position record attached to a packet carrier
// while it travels the network.
type PositionState struct {
	URI         GraphURI
	CurrentNode NodeID
	CurrentDir  geom.Side
	NextNode    NodeID
	NextDir     geom.Side
	Entering    bool
}

// Carrier is the opaque packet handle the scheduler moves through the
// graph. The host supplies the implementation; position state is
// attachable, removable and queryable.
type Carrier interface {
	// CarrierID identifies the packet for tie-breaking and reporting.
	CarrierID() uint64

	// Exists reports whether the underlying entity is still alive. Dead
	// carriers are dropped at delivery time.
	Exists() bool

	// Position returns the attached graph-position state, if any.
	Position() (PositionState, bool)

	// SetPosition attaches or replaces the graph-position state.
	SetPosition(PositionState)

	// ClearPosition detaches the graph-position state.
	ClearPosition()
}

// NodeDefinition is the pluggable behavior bound to a block kind. One
// stateless definition instance serves every node of its kind; per-node
// state belongs on the carrier or in the host.
//
// Entry sides always point back toward the node the packet came from.
type NodeDefinition interface {
	// HoldDataFor returns how many ticks a packet spends traversing the
	// node before it is delivered onward. Must be positive.
	HoldDataFor(node *NodeRef) int

	// DataEnterNode is a notification hook invoked when a packet arrives
	// at the node, before routing.
	DataEnterNode(node *NodeRef, data Carrier, entry geom.Side)

	// DataEnterNetwork routes a packet freshly inserted at the node. The
	// boolean is false to eject. Conventionally this behaves like
	// junction processing with no entry side.
	DataEnterNetwork(node *NodeRef, data Carrier) (geom.Side, bool)

	// ProcessJunction picks the exit side for a packet crossing a
	// junction. The boolean is false to eject.
	ProcessJunction(node *NodeRef, data Carrier, entry geom.Side) (geom.Side, bool)

	// ProcessEdge decides what a packet does on an edge entered at the
	// given end.
	ProcessEdge(node *NodeRef, data Carrier, entry End) EdgeVerdict

	// ProcessTerminus decides a packet's fate at a terminus: true ejects
	// it from the network, false bounces it back toward its neighbor.
	ProcessTerminus(node *NodeRef, data Carrier) bool
}
