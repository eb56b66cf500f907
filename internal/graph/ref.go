package graph

// NodeRef is the stable indirection handle all external code holds in place
// of raw node objects. The single owned slot is swapped when a node is
// upgraded or otherwise replaced, so holders transparently observe the new
// representation. Removing the node clears the slot and the ref reports
// stale from then on.
type NodeRef struct {
	node GraphNode
}

func newRef(n GraphNode) *NodeRef { return &NodeRef{node: n} }

// Valid reports whether the referenced node still exists.
func (r *NodeRef) Valid() bool { return r != nil && r.node != nil }

// Node returns the current representation, or ErrStaleRef after removal.
func (r *NodeRef) Node() (GraphNode, error) {
	if !r.Valid() {
		return nil, ErrStaleRef
	}
	return r.node, nil
}

// ID returns the node id. Valid must hold.
func (r *NodeRef) ID() NodeID { return r.node.Header().ID }

// URI returns the owning instance URI. Valid must hold.
func (r *NodeRef) URI() GraphURI { return r.node.Header().URI }

// Kind returns the current representation kind. Valid must hold.
func (r *NodeRef) Kind() NodeKind { return r.node.Kind() }
