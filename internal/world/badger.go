package world

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// Key prefixes for the two record types.
const (
	prefixKind = "k:" // cell block kind
	prefixTag  = "t:" // cell node tag
)

// BadgerWorld is a BadgerDB-backed World that persists block kinds and
// cell tags between runs. Change handlers are in-memory and per-process.
type BadgerWorld struct {
	db       *badger.DB
	handlers []ChangeHandler
}

// OpenBadgerWorld opens or creates the database at path.
func OpenBadgerWorld(path string) (*BadgerWorld, error) {
	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &BadgerWorld{db: db}, nil
}

// Close releases the database.
func (w *BadgerWorld) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func cellKey(prefix string, pos geom.Cell) []byte {
	return []byte(fmt.Sprintf("%s%d,%d,%d", prefix, pos.X, pos.Y, pos.Z))
}

func (w *BadgerWorld) get(key []byte) ([]byte, bool) {
	var out []byte
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

func (w *BadgerWorld) set(key, val []byte) {
	_ = w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (w *BadgerWorld) del(key []byte) {
	_ = w.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// KindAt implements World.
func (w *BadgerWorld) KindAt(pos geom.Cell) graph.BlockKind {
	val, ok := w.get(cellKey(prefixKind, pos))
	if !ok {
		return KindEmpty
	}
	return graph.BlockKind(val)
}

// SetKind implements World.
func (w *BadgerWorld) SetKind(pos geom.Cell, kind graph.BlockKind) {
	old := w.KindAt(pos)
	if old == kind {
		return
	}
	key := cellKey(prefixKind, pos)
	if kind == KindEmpty {
		w.del(key)
	} else {
		w.set(key, []byte(kind))
	}
	for _, h := range w.handlers {
		h(old, kind, pos)
	}
}

// TagAt implements World.
func (w *BadgerWorld) TagAt(pos geom.Cell) (Tag, bool) {
	val, ok := w.get(cellKey(prefixTag, pos))
	if !ok {
		return Tag{}, false
	}
	var tag Tag
	if err := json.Unmarshal(val, &tag); err != nil {
		return Tag{}, false
	}
	return tag, true
}

// SetTag implements World.
func (w *BadgerWorld) SetTag(pos geom.Cell, tag Tag) {
	data, err := json.Marshal(tag)
	if err != nil {
		return
	}
	w.set(cellKey(prefixTag, pos), data)
}

// ClearTag implements World.
func (w *BadgerWorld) ClearTag(pos geom.Cell) {
	w.del(cellKey(prefixTag, pos))
}

// OnCellChanged implements World.
func (w *BadgerWorld) OnCellChanged(h ChangeHandler) {
	w.handlers = append(w.handlers, h)
}
