// Package sched moves packets through graph instances on a tick-driven
// timetable. Every hop is an arrival scheduled for a future tick; ticks
// deliver all due arrivals in insertion-stable order, each delivery asks
// the node's definition where to send the packet next, and the next hop
// is scheduled in turn.
package sched

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

// ErrNoDefinition indicates a node whose definition id is not registered
// with its graph type. Internal invariant violation.
var ErrNoDefinition = errors.New("sched: node has no registered definition")

// LeaveReason explains why a packet left the network.
type LeaveReason uint8

const (
	// LeaveDelivered means a terminus accepted the packet.
	LeaveDelivered LeaveReason = iota
	// LeaveEjected means a definition routed the packet out, or it ran
	// off an open edge end or unconnected side.
	LeaveEjected
	// LeaveStale means the node or instance under the packet was torn
	// down between hops.
	LeaveStale
)

// String returns the lowercase reason name.
func (r LeaveReason) String() string {
	switch r {
	case LeaveDelivered:
		return "delivered"
	case LeaveEjected:
		return "ejected"
	case LeaveStale:
		return "stale"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// arrivalKey orders the queue by due tick, ties broken by insertion
// sequence so same-tick deliveries replay in scheduling order.
type arrivalKey struct {
	due world.Tick
	seq uint64
}

func compareArrivals(a, b interface{}) int {
	ka, kb := a.(arrivalKey), b.(arrivalKey)
	switch {
	case ka.due != kb.due:
		if ka.due < kb.due {
			return -1
		}
		return 1
	case ka.seq != kb.seq:
		if ka.seq < kb.seq {
			return -1
		}
		return 1
	}
	return 0
}

// arrival is one scheduled hop: the packet reaches dest through the
// entry side at the key's due tick. from is the node it departed, nil
// for a fresh insertion.
type arrival struct {
	data  graph.Carrier
	dest  *graph.NodeRef
	from  *graph.NodeRef
	entry geom.Side
	fresh bool
}

// Scheduler owns the arrival queue for every instance under one manager.
// Not safe for concurrent use; the host drives it from its tick loop.
type Scheduler struct {
	mgr    *graph.Manager
	clock  world.Clock
	queue  *redblacktree.Tree
	seq    uint64
	onLeft func(graph.Carrier, LeaveReason)
}

// NewScheduler creates a scheduler over the manager's instances, timed
// by the given clock.
func NewScheduler(mgr *graph.Manager, clock world.Clock) *Scheduler {
	return &Scheduler{
		mgr:   mgr,
		clock: clock,
		queue: redblacktree.NewWith(compareArrivals),
	}
}

// OnLeaveNetwork registers the callback invoked whenever a packet leaves
// the network, with the reason. At most one callback is kept.
func (s *Scheduler) OnLeaveNetwork(fn func(data graph.Carrier, reason LeaveReason)) {
	s.onLeft = fn
}

// Pending returns the number of queued arrivals.
func (s *Scheduler) Pending() int { return s.queue.Size() }

// InsertData puts a packet into the network at the given node. The
// packet's first routing decision runs when the arrival comes due, after
// the node's hold time.
func (s *Scheduler) InsertData(ref *graph.NodeRef, data graph.Carrier) error {
	def, ok := s.mgr.DefinitionOf(ref)
	if !ok {
		return fmt.Errorf("%w: node %d", ErrNoDefinition, ref.ID())
	}
	data.SetPosition(graph.PositionState{
		URI:         ref.URI(),
		CurrentNode: ref.ID(),
		Entering:    true,
	})
	s.push(arrival{data: data, dest: ref, fresh: true}, s.holdAt(def, ref))
	return nil
}

// OnTick delivers every arrival due at or before the clock's current
// tick, in (tick, sequence) order. Deliveries scheduled during the drain
// land strictly in the future and wait for later ticks.
func (s *Scheduler) OnTick() error {
	now := s.clock.Now()
	for {
		node := s.queue.Left()
		if node == nil || node.Key.(arrivalKey).due > now {
			return nil
		}
		s.queue.Remove(node.Key)
		if err := s.deliver(node.Value.(arrival)); err != nil {
			return err
		}
	}
}

func (s *Scheduler) push(a arrival, hold int) {
	due := s.clock.Now() + world.Tick(hold)
	s.seq++
	s.queue.Put(arrivalKey{due: due, seq: s.seq}, a)
}

// holdAt returns the node's hold time clamped to at least one tick, so a
// hop never lands on the tick that scheduled it.
func (s *Scheduler) holdAt(def graph.NodeDefinition, ref *graph.NodeRef) int {
	hold := def.HoldDataFor(ref)
	if hold < 1 {
		hold = 1
	}
	return hold
}

func (s *Scheduler) deliver(a arrival) error {
	if !a.data.Exists() {
		return nil
	}
	if !a.dest.Valid() {
		s.leave(a.data, LeaveStale)
		return nil
	}
	if _, ok := s.mgr.Instance(a.dest.URI()); !ok {
		s.leave(a.data, LeaveStale)
		return nil
	}
	def, ok := s.mgr.DefinitionOf(a.dest)
	if !ok {
		return fmt.Errorf("%w: node %d", ErrNoDefinition, a.dest.ID())
	}
	n, err := a.dest.Node()
	if err != nil {
		return err
	}

	if !a.fresh {
		def.DataEnterNode(a.dest, a.data, a.entry)
	}

	var (
		next *graph.NodeRef
		exit geom.Side
	)
	switch v := n.(type) {
	case *graph.Junction:
		side, route := s.routeAtCell(def, a)
		if !route {
			s.leave(a.data, LeaveEjected)
			return nil
		}
		ref, linked := v.Links[side]
		if !linked {
			s.leave(a.data, LeaveEjected)
			return nil
		}
		next, exit = ref, side

	case *graph.Terminus:
		if a.fresh {
			side, route := s.routeAtCell(def, a)
			if !route {
				s.leave(a.data, LeaveEjected)
				return nil
			}
			if v.Neighbor == nil || v.Side != side {
				s.leave(a.data, LeaveEjected)
				return nil
			}
			next, exit = v.Neighbor, v.Side
			break
		}
		if def.ProcessTerminus(a.dest, a.data) {
			a.data.ClearPosition()
			s.leave(a.data, LeaveDelivered)
			return nil
		}
		// Bounce back toward the sole neighbor.
		if v.Neighbor == nil {
			s.leave(a.data, LeaveEjected)
			return nil
		}
		next, exit = v.Neighbor, v.Side

	case *graph.Edge:
		end, routed := s.edgeExit(def, v, a)
		if !routed {
			s.leave(a.data, LeaveEjected)
			return nil
		}
		link := v.Links[end]
		if link.Neighbor == nil {
			s.leave(a.data, LeaveEjected)
			return nil
		}
		next, exit = link.Neighbor, link.Side
	}

	nextDef, ok := s.mgr.DefinitionOf(next)
	if !ok {
		s.leave(a.data, LeaveStale)
		return nil
	}
	a.data.SetPosition(graph.PositionState{
		URI:         next.URI(),
		CurrentNode: a.dest.ID(),
		CurrentDir:  exit,
		NextNode:    next.ID(),
		NextDir:     exit.Reverse(),
	})
	s.push(arrival{
		data:  a.data,
		dest:  next,
		from:  a.dest,
		entry: exit.Reverse(),
	}, s.holdAt(nextDef, next))
	return nil
}

// routeAtCell asks the definition for an exit side at a single-cell
// node, using the insertion hook for fresh packets.
func (s *Scheduler) routeAtCell(def graph.NodeDefinition, a arrival) (geom.Side, bool) {
	if a.fresh {
		return def.DataEnterNetwork(a.dest, a.data)
	}
	return def.ProcessJunction(a.dest, a.data, a.entry)
}

// edgeExit resolves which end the packet leaves an edge through. Fresh
// insertions route by exit side like a junction; traversals resolve the
// entered end and apply the edge verdict.
func (s *Scheduler) edgeExit(def graph.NodeDefinition, e *graph.Edge, a arrival) (graph.End, bool) {
	if a.fresh {
		side, route := def.DataEnterNetwork(a.dest, a.data)
		if !route {
			return 0, false
		}
		for _, end := range [2]graph.End{graph.EndBack, graph.EndFront} {
			if e.Links[end].Neighbor != nil && e.Links[end].Side == side {
				return end, true
			}
		}
		return 0, false
	}
	entered, ok := e.EndLinkedTo(a.from, a.entry)
	if !ok {
		// The link the packet traveled was rewired away mid-flight.
		return 0, false
	}
	switch def.ProcessEdge(a.dest, a.data, entered) {
	case graph.EdgeContinue:
		return entered.Opposite(), true
	case graph.EdgeReverse:
		return entered, true
	default:
		return 0, false
	}
}

func (s *Scheduler) leave(data graph.Carrier, reason LeaveReason) {
	data.ClearPosition()
	if s.onLeft != nil {
		s.onLeft(data, reason)
	}
}
