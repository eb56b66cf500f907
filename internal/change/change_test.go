package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyralis/blockflow-go/internal/build"
	"github.com/kyralis/blockflow-go/internal/defs"
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

const kindBelt graph.BlockKind = "belt"

// newTestRig wires a change manager over an empty memory world with one
// transport graph type. Errors surfacing from change handling fail the
// test immediately.
func newTestRig(t *testing.T) (*ChangeManager, *world.MemoryWorld) {
	t.Helper()
	gt := graph.NewGraphType("transport")
	_, err := gt.AddNodeType(kindBelt, &defs.Transport{})
	require.NoError(t, err)

	mgr := graph.NewManager()
	_, err = mgr.AddGraphType(gt)
	require.NoError(t, err)

	w := world.NewMemoryWorld()
	con := build.NewConstructor(mgr, w)
	m := NewChangeManager(mgr, con, w)
	m.Attach(func(err error) {
		t.Fatalf("change error: %v", err)
	})
	return m, w
}

func placeLine(w *world.MemoryWorld, n int) {
	for i := 0; i < n; i++ {
		w.SetKind(geom.Cell{X: i}, kindBelt)
	}
}

// soleInstance returns the only live instance.
func soleInstance(t *testing.T, m *ChangeManager) *graph.Instance {
	t.Helper()
	require.Equal(t, 1, m.mgr.InstanceCount())
	return m.mgr.Instances()[0]
}

func nodeKinds(t *testing.T, in *graph.Instance) map[graph.NodeKind]int {
	t.Helper()
	counts := make(map[graph.NodeKind]int)
	for _, ref := range in.Refs() {
		n, err := ref.Node()
		require.NoError(t, err)
		counts[n.Kind()]++
	}
	return counts
}

func TestIncrementalLineMatchesBulkConstruction(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	placeLine(w, 5)

	in := soleInstance(t, m)
	assert.Equal(t, 3, in.NodeCount())
	counts := nodeKinds(t, in)
	assert.Equal(t, 2, counts[graph.KindTerminus])
	assert.Equal(t, 1, counts[graph.KindEdge])
}

func TestPlacementBridgesTwoInstances(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	// Two separate 2-cell segments with a one-cell gap at x=2.
	for _, x := range []int{0, 1, 3, 4} {
		w.SetKind(geom.Cell{X: x}, kindBelt)
	}
	require.Equal(t, 2, m.mgr.InstanceCount())

	w.SetKind(geom.Cell{X: 2}, kindBelt)

	in := soleInstance(t, m)
	assert.Equal(t, 3, in.NodeCount())
	counts := nodeKinds(t, in)
	assert.Equal(t, 2, counts[graph.KindTerminus])
	assert.Equal(t, 1, counts[graph.KindEdge])

	// All five cells re-tagged into the surviving instance.
	for x := 0; x < 5; x++ {
		tag, tagged := w.TagAt(geom.Cell{X: x})
		require.True(t, tagged)
		assert.Equal(t, in.URI(), tag.URI)
	}
}

func TestPlacementFormsJunction(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	placeLine(w, 3)
	w.SetKind(geom.Cell{X: 1, Z: 1}, kindBelt)

	in := soleInstance(t, m)
	counts := nodeKinds(t, in)
	assert.Equal(t, 1, counts[graph.KindJunction])
	assert.Equal(t, 3, counts[graph.KindTerminus])

	tag, _ := w.TagAt(geom.Cell{X: 1})
	ref, ok := m.mgr.Node(tag.URI, tag.Node)
	require.True(t, ok)
	n, err := ref.Node()
	require.NoError(t, err)
	assert.Equal(t, graph.KindJunction, n.Kind())
}

func TestPlacementClosesRing(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	ring := []geom.Cell{
		{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0},
		{X: 2, Z: 1}, {X: 2, Z: 2},
		{X: 1, Z: 2}, {X: 0, Z: 2}, {X: 0, Z: 1},
	}
	for _, c := range ring[:len(ring)-1] {
		w.SetKind(c, kindBelt)
	}
	w.SetKind(ring[len(ring)-1], kindBelt)

	in := soleInstance(t, m)
	require.Equal(t, 1, in.NodeCount())
	ref := in.Refs()[0]
	n, err := ref.Node()
	require.NoError(t, err)
	e, isEdge := n.(*graph.Edge)
	require.True(t, isEdge)
	assert.Len(t, e.Cells, 8)
	assert.Same(t, ref, e.Links[graph.EndBack].Neighbor)
	assert.Same(t, ref, e.Links[graph.EndFront].Neighbor)
}

func TestRemovalSplitsInstance(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	placeLine(w, 5)
	require.Equal(t, 1, m.mgr.InstanceCount())

	w.SetKind(geom.Cell{X: 2}, world.KindEmpty)

	assert.Equal(t, 2, m.mgr.InstanceCount())
	_, tagged := w.TagAt(geom.Cell{X: 2})
	assert.False(t, tagged)

	// Each half is a 2-cell component in its own instance.
	left, _ := w.TagAt(geom.Cell{X: 0})
	right, _ := w.TagAt(geom.Cell{X: 4})
	assert.NotEqual(t, left.URI, right.URI)

	for _, uri := range []graph.GraphURI{left.URI, right.URI} {
		in, ok := m.mgr.Instance(uri)
		require.True(t, ok)
		assert.Equal(t, 2, in.NodeCount())
	}
}

func TestRemovalOfLastCellDropsInstance(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	w.SetKind(geom.Cell{}, kindBelt)
	require.Equal(t, 1, m.mgr.InstanceCount())

	w.SetKind(geom.Cell{}, world.KindEmpty)
	assert.Equal(t, 0, m.mgr.InstanceCount())
	assert.Equal(t, 0, w.TagCount())
}

func TestRemovalOfTerminus(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	placeLine(w, 5)
	in := soleInstance(t, m)

	// Taking out an end terminus leaves the chain connected: still one
	// instance, and the freed cell is untagged.
	w.SetKind(geom.Cell{X: 4}, world.KindEmpty)
	assert.Equal(t, 1, m.mgr.InstanceCount())
	assert.Equal(t, 2, in.NodeCount())
	_, tagged := w.TagAt(geom.Cell{X: 4})
	assert.False(t, tagged)
}

func TestRemovalShrinksEdgeEndpoint(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	placeLine(w, 5)

	// x=3 is an endpoint cell of the interior edge. Removing it shrinks
	// the edge and strands the far terminus in its own instance.
	w.SetKind(geom.Cell{X: 3}, world.KindEmpty)
	assert.Equal(t, 2, m.mgr.InstanceCount())
	_, tagged := w.TagAt(geom.Cell{X: 3})
	assert.False(t, tagged)

	chainTag, _ := w.TagAt(geom.Cell{X: 1})
	loneTag, _ := w.TagAt(geom.Cell{X: 4})
	require.NotEqual(t, chainTag.URI, loneTag.URI)

	chain, ok := m.mgr.Instance(chainTag.URI)
	require.True(t, ok)
	assert.Equal(t, 2, chain.NodeCount())

	edgeRef, ok := chain.Ref(chainTag.Node)
	require.True(t, ok)
	n, err := edgeRef.Node()
	require.NoError(t, err)
	assert.Len(t, n.Positions(), 2)

	lone, ok := m.mgr.Instance(loneTag.URI)
	require.True(t, ok)
	assert.Equal(t, 1, lone.NodeCount())
}

func TestRemovalOpensRing(t *testing.T) {
	t.Parallel()

	m, w := newTestRig(t)
	ring := []geom.Cell{
		{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0},
		{X: 2, Z: 1}, {X: 2, Z: 2},
		{X: 1, Z: 2}, {X: 0, Z: 2}, {X: 0, Z: 1},
	}
	for _, c := range ring {
		w.SetKind(c, kindBelt)
	}
	in := soleInstance(t, m)
	require.Equal(t, 1, in.NodeCount())

	w.SetKind(geom.Cell{X: 1, Z: 0}, world.KindEmpty)

	// The ring opens into one 7-cell chain; still a single instance.
	assert.Equal(t, 1, m.mgr.InstanceCount())
	in = soleInstance(t, m)

	total := 0
	for _, ref := range in.Refs() {
		n, err := ref.Node()
		require.NoError(t, err)
		total += len(n.Positions())
		for _, slot := range graph.LinkSlots(n) {
			assert.NotNil(t, slot.Neighbor)
		}
	}
	assert.Equal(t, 7, total)
}
