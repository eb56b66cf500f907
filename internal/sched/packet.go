package sched

import (
	"github.com/kyralis/blockflow-go/internal/graph"
)

// Packet is the built-in carrier: an identified payload with attachable
// position state and a visit log. Hosts with their own entity system can
// implement graph.Carrier directly instead.
type Packet struct {
	id      uint64
	payload string
	alive   bool
	pos     graph.PositionState
	hasPos  bool
	visited []graph.NodeID
}

// NewPacket creates a live packet with the given id and payload.
func NewPacket(id uint64, payload string) *Packet {
	return &Packet{id: id, payload: payload, alive: true}
}

// CarrierID returns the packet id.
func (p *Packet) CarrierID() uint64 { return p.id }

// Payload returns the opaque payload string.
func (p *Packet) Payload() string { return p.payload }

// Exists reports whether the packet is still alive.
func (p *Packet) Exists() bool { return p.alive }

// Kill marks the packet dead; the scheduler drops it at its next
// delivery.
func (p *Packet) Kill() { p.alive = false }

// Position returns the attached position state, if any.
func (p *Packet) Position() (graph.PositionState, bool) {
	return p.pos, p.hasPos
}

// SetPosition attaches or replaces the position state.
func (p *Packet) SetPosition(ps graph.PositionState) {
	p.pos = ps
	p.hasPos = true
}

// ClearPosition detaches the position state.
func (p *Packet) ClearPosition() {
	p.pos = graph.PositionState{}
	p.hasPos = false
}

// RecordVisit appends a node to the packet's visit log. Definitions that
// trace movement call this from their arrival hook.
func (p *Packet) RecordVisit(id graph.NodeID) {
	p.visited = append(p.visited, id)
}

// Visited returns the node ids the packet has arrived at, in order.
func (p *Packet) Visited() []graph.NodeID { return p.visited }
