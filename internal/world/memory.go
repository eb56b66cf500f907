package world

import (
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// MemoryWorld is a map-backed World for tests and one-shot simulations.
type MemoryWorld struct {
	kinds    map[geom.Cell]graph.BlockKind
	tags     map[geom.Cell]Tag
	handlers []ChangeHandler
}

// NewMemoryWorld creates an empty in-memory world.
func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{
		kinds: make(map[geom.Cell]graph.BlockKind),
		tags:  make(map[geom.Cell]Tag),
	}
}

// KindAt implements World.
func (w *MemoryWorld) KindAt(pos geom.Cell) graph.BlockKind {
	return w.kinds[pos]
}

// SetKind implements World.
func (w *MemoryWorld) SetKind(pos geom.Cell, kind graph.BlockKind) {
	old := w.kinds[pos]
	if old == kind {
		return
	}
	if kind == KindEmpty {
		delete(w.kinds, pos)
	} else {
		w.kinds[pos] = kind
	}
	for _, h := range w.handlers {
		h(old, kind, pos)
	}
}

// PlaceKind sets a cell's kind without notifying handlers, for seeding a
// world before the engine is attached.
func (w *MemoryWorld) PlaceKind(pos geom.Cell, kind graph.BlockKind) {
	if kind == KindEmpty {
		delete(w.kinds, pos)
		return
	}
	w.kinds[pos] = kind
}

// TagAt implements World.
func (w *MemoryWorld) TagAt(pos geom.Cell) (Tag, bool) {
	t, ok := w.tags[pos]
	return t, ok
}

// SetTag implements World.
func (w *MemoryWorld) SetTag(pos geom.Cell, tag Tag) {
	w.tags[pos] = tag
}

// ClearTag implements World.
func (w *MemoryWorld) ClearTag(pos geom.Cell) {
	delete(w.tags, pos)
}

// OnCellChanged implements World.
func (w *MemoryWorld) OnCellChanged(h ChangeHandler) {
	w.handlers = append(w.handlers, h)
}

// TagCount returns the number of tagged cells.
func (w *MemoryWorld) TagCount() int { return len(w.tags) }
