package graph

import (
	"fmt"
	"sort"
)

// Manager is the explicit registry the constructor, change manager and
// scheduler share: graph types, the kind→type binding, and all live
// instances. It replaces the global tables a host would otherwise keep.
type Manager struct {
	types     []*GraphType
	byKind    map[BlockKind]GraphTypeID
	instances map[GraphURI]*Instance
	nextInst  []uint64 // per-type monotonic instance numbers
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		byKind:    make(map[BlockKind]GraphTypeID),
		instances: make(map[GraphURI]*Instance),
	}
}

// AddGraphType registers a graph type and binds its block kinds. A block
// kind may belong to at most one graph type process-wide.
func (m *Manager) AddGraphType(t *GraphType) (GraphTypeID, error) {
	for kind := range t.byKind {
		if _, taken := m.byKind[kind]; taken {
			return 0, fmt.Errorf("%w: %q already belongs to another graph type", ErrKindBound, kind)
		}
	}
	id := GraphTypeID(len(m.types))
	m.types = append(m.types, t)
	m.nextInst = append(m.nextInst, 0)
	for kind := range t.byKind {
		m.byKind[kind] = id
	}
	return id, nil
}

// GraphType returns the registered type for an id.
func (m *Manager) GraphType(id GraphTypeID) (*GraphType, bool) {
	if id < 0 || int(id) >= len(m.types) {
		return nil, false
	}
	return m.types[id], true
}

// TypeForKind resolves a block kind to its graph type and definition id.
func (m *Manager) TypeForKind(kind BlockKind) (GraphTypeID, DefinitionID, bool) {
	tid, ok := m.byKind[kind]
	if !ok {
		return 0, 0, false
	}
	did, ok := m.types[tid].DefinitionFor(kind)
	if !ok {
		return 0, 0, false
	}
	return tid, did, true
}

// NewInstance allocates a fresh instance of the given graph type with a
// never-reused instance number.
func (m *Manager) NewInstance(tid GraphTypeID) (*Instance, error) {
	if tid < 0 || int(tid) >= len(m.types) {
		return nil, fmt.Errorf("new instance: %w: %d", ErrUnknownType, tid)
	}
	uri := GraphURI{Type: tid, Instance: m.nextInst[tid]}
	m.nextInst[tid]++
	in := newInstance(uri)
	m.instances[uri] = in
	return in, nil
}

// Instance returns the live instance for a URI.
func (m *Manager) Instance(uri GraphURI) (*Instance, bool) {
	in, ok := m.instances[uri]
	return in, ok
}

// Node resolves (uri, id) to a node handle.
func (m *Manager) Node(uri GraphURI, id NodeID) (*NodeRef, bool) {
	in, ok := m.instances[uri]
	if !ok {
		return nil, false
	}
	return in.Ref(id)
}

// Definition resolves a node's behavior through its instance's graph type.
func (m *Manager) Definition(uri GraphURI, id DefinitionID) (NodeDefinition, bool) {
	t, ok := m.GraphType(uri.Type)
	if !ok {
		return nil, false
	}
	return t.Definition(id)
}

// DefinitionOf resolves the behavior of the node behind a ref.
func (m *Manager) DefinitionOf(ref *NodeRef) (NodeDefinition, bool) {
	n, err := ref.Node()
	if err != nil {
		return nil, false
	}
	return m.Definition(n.Header().URI, n.Header().Def)
}

// Instances returns every live instance ordered by URI.
func (m *Manager) Instances() []*Instance {
	out := make([]*Instance, 0, len(m.instances))
	for _, in := range m.instances {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].uri, out[j].uri
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Instance < b.Instance
	})
	return out
}

// DropInstance removes an instance from the registry. Used when a merge
// absorbs it or its node count reaches zero.
func (m *Manager) DropInstance(uri GraphURI) {
	delete(m.instances, uri)
}

// InstanceCount returns the number of live instances.
func (m *Manager) InstanceCount() int { return len(m.instances) }
