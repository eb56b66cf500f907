// Package graph provides the typed block-graph data model for Blockflow.
//
// It defines the three node representations (Terminus, Edge, Junction), the
// stable NodeRef handle that survives in-place representation swaps, the
// GraphType registry binding block kinds to pluggable NodeDefinition
// behaviors, and the Manager that owns all graph instances.
//
// The model is deliberately not synchronized: all mutation runs to
// completion on the host's single update thread (construction, merges and
// packet movement never interleave).
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for model-level operations.
var (
	// ErrStaleRef indicates a NodeRef was dereferenced after its node was
	// removed.
	ErrStaleRef = errors.New("graph: stale node reference")

	// ErrCannotUpgrade indicates an upgrade was attempted on a Junction,
	// which is already the richest representation.
	ErrCannotUpgrade = errors.New("graph: junction cannot be upgraded")

	// ErrKindBound indicates a block kind was registered twice.
	ErrKindBound = errors.New("graph: block kind already bound")

	// ErrUnknownType indicates an operation referenced a graph type id that
	// was never registered.
	ErrUnknownType = errors.New("graph: unknown graph type")

	// ErrForeignNode indicates a node was passed to an instance that does
	// not own it.
	ErrForeignNode = errors.New("graph: node belongs to a different instance")
)

// BlockKind identifies the block occupying a world cell.
type BlockKind string

// NodeID uniquely identifies a node within its owning instance. IDs are
// assigned monotonically and never reused while the instance lives.
type NodeID uint64

// DefinitionID is an index into the owning GraphType's definition list.
type DefinitionID int

// GraphTypeID identifies a registered GraphType within a Manager.
type GraphTypeID int

// GraphURI uniquely identifies one constructed graph instance.
// Instance numbers are assigned monotonically per type and never reused.
type GraphURI struct {
	Type     GraphTypeID
	Instance uint64
}

// String formats the URI as "type/instance".
func (u GraphURI) String() string {
	return fmt.Sprintf("%d/%d", u.Type, u.Instance)
}

// GraphType is a per-graph-type registry mapping block kinds to small
// integer definition ids and their NodeDefinition behaviors.
//
// Registration happens once at setup; a GraphType is immutable afterwards.
// A block kind maps to at most one definition id.
type GraphType struct {
	name   string
	kinds  []BlockKind
	defs   []NodeDefinition
	byKind map[BlockKind]DefinitionID
}

// NewGraphType creates an empty graph type with the given display name.
func NewGraphType(name string) *GraphType {
	return &GraphType{
		name:   name,
		byKind: make(map[BlockKind]DefinitionID),
	}
}

// Name returns the display name given at construction.
func (t *GraphType) Name() string { return t.name }

// AddNodeType registers a block kind with its behavior and returns the
// assigned definition id. Registering the same kind twice returns
// ErrKindBound.
func (t *GraphType) AddNodeType(kind BlockKind, def NodeDefinition) (DefinitionID, error) {
	if _, ok := t.byKind[kind]; ok {
		return 0, fmt.Errorf("%w: %q in type %q", ErrKindBound, kind, t.name)
	}
	id := DefinitionID(len(t.defs))
	t.kinds = append(t.kinds, kind)
	t.defs = append(t.defs, def)
	t.byKind[kind] = id
	return id, nil
}

// Definition returns the behavior for a definition id.
func (t *GraphType) Definition(id DefinitionID) (NodeDefinition, bool) {
	if id < 0 || int(id) >= len(t.defs) {
		return nil, false
	}
	return t.defs[id], true
}

// DefinitionFor returns the definition id bound to a block kind.
func (t *GraphType) DefinitionFor(kind BlockKind) (DefinitionID, bool) {
	id, ok := t.byKind[kind]
	return id, ok
}

// KindOf returns the block kind registered under a definition id.
func (t *GraphType) KindOf(id DefinitionID) (BlockKind, bool) {
	if id < 0 || int(id) >= len(t.kinds) {
		return "", false
	}
	return t.kinds[id], true
}

// DefinitionCount returns the number of registered definitions.
func (t *GraphType) DefinitionCount() int { return len(t.defs) }
