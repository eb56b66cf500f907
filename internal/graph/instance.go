package graph

import (
	"fmt"

	"github.com/kyralis/blockflow-go/internal/geom"
)

// Instance owns every node of one constructed graph. Nodes are created,
// replaced and removed only through it; node ids are monotonic and never
// reused while the instance lives.
type Instance struct {
	uri    GraphURI
	nextID NodeID
	nodes  map[NodeID]GraphNode
	refs   map[NodeID]*NodeRef
}

func newInstance(uri GraphURI) *Instance {
	return &Instance{
		uri:   uri,
		nodes: make(map[NodeID]GraphNode),
		refs:  make(map[NodeID]*NodeRef),
	}
}

// URI returns the instance's globally unique identifier.
func (in *Instance) URI() GraphURI { return in.uri }

// NodeCount returns the number of live nodes.
func (in *Instance) NodeCount() int { return len(in.nodes) }

// Ref returns the handle for a node id.
func (in *Instance) Ref(id NodeID) (*NodeRef, bool) {
	ref, ok := in.refs[id]
	return ref, ok
}

// Refs returns a snapshot of all live node handles.
func (in *Instance) Refs() []*NodeRef {
	out := make([]*NodeRef, 0, len(in.refs))
	for _, ref := range in.refs {
		out = append(out, ref)
	}
	return out
}

func (in *Instance) register(n GraphNode) *NodeRef {
	hdr := n.Header()
	hdr.ID = in.nextID
	hdr.URI = in.uri
	in.nextID++
	ref := newRef(n)
	in.nodes[hdr.ID] = n
	in.refs[hdr.ID] = ref
	return ref
}

// NewTerminus creates an unconnected Terminus at pos.
func (in *Instance) NewTerminus(pos geom.Cell, def DefinitionID) *NodeRef {
	return in.register(&Terminus{Node: Node{Def: def}, Pos: pos})
}

// NewEdge creates an unlinked Edge spanning cells (ordered back to front).
func (in *Instance) NewEdge(cells []geom.Cell, def DefinitionID) *NodeRef {
	return in.register(&Edge{Node: Node{Def: def}, Cells: cells})
}

// NewJunction creates an unlinked Junction at pos.
func (in *Instance) NewJunction(pos geom.Cell, def DefinitionID) *NodeRef {
	return in.register(&Junction{
		Node:  Node{Def: def},
		Pos:   pos,
		Links: make(map[geom.Side]*NodeRef),
	})
}

// Replace swaps the referenced node's representation in place. The new
// representation inherits the old header (id, URI and definition are
// preserved); every outside holder of ref observes the new variant.
func (in *Instance) Replace(ref *NodeRef, rep GraphNode) error {
	old, err := ref.Node()
	if err != nil {
		return err
	}
	hdr := old.Header()
	if in.nodes[hdr.ID] != old {
		return fmt.Errorf("replace node %d: %w", hdr.ID, ErrForeignNode)
	}
	*rep.Header() = *hdr
	in.nodes[hdr.ID] = rep
	ref.node = rep
	return nil
}

// Remove deletes the referenced node and invalidates its ref. Links are
// not touched: callers perform the controlled teardown (unlinking) first.
func (in *Instance) Remove(ref *NodeRef) error {
	n, err := ref.Node()
	if err != nil {
		return err
	}
	hdr := n.Header()
	if in.nodes[hdr.ID] != n {
		return fmt.Errorf("remove node %d: %w", hdr.ID, ErrForeignNode)
	}
	delete(in.nodes, hdr.ID)
	delete(in.refs, hdr.ID)
	ref.node = nil
	return nil
}

// Adopt transfers the referenced node out of its current owner into this
// instance under a fresh id. The *NodeRef pointer itself is preserved, so
// outside holders (including linked neighbors) stay valid. Cell tags are
// the caller's responsibility.
func (in *Instance) Adopt(ref *NodeRef, from *Instance) (NodeID, error) {
	n, err := ref.Node()
	if err != nil {
		return 0, err
	}
	hdr := n.Header()
	if from.nodes[hdr.ID] != n {
		return 0, fmt.Errorf("adopt node %d: %w", hdr.ID, ErrForeignNode)
	}
	delete(from.nodes, hdr.ID)
	delete(from.refs, hdr.ID)

	hdr.ID = in.nextID
	hdr.URI = in.uri
	in.nextID++
	in.nodes[hdr.ID] = n
	in.refs[hdr.ID] = ref
	return hdr.ID, nil
}
