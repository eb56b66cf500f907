package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/world"
)

const kindBelt graph.BlockKind = "belt"

// inertDef satisfies graph.NodeDefinition for construction tests, which
// never route packets.
type inertDef struct{}

func (inertDef) HoldDataFor(*graph.NodeRef) int                          { return 1 }
func (inertDef) DataEnterNode(*graph.NodeRef, graph.Carrier, geom.Side)  {}
func (inertDef) DataEnterNetwork(*graph.NodeRef, graph.Carrier) (geom.Side, bool) {
	return 0, false
}
func (inertDef) ProcessJunction(*graph.NodeRef, graph.Carrier, geom.Side) (geom.Side, bool) {
	return 0, false
}
func (inertDef) ProcessEdge(*graph.NodeRef, graph.Carrier, graph.End) graph.EdgeVerdict {
	return graph.EdgeEject
}
func (inertDef) ProcessTerminus(*graph.NodeRef, graph.Carrier) bool { return true }

// newTestRig seeds a memory world with belt blocks at the given cells and
// returns a constructor ready to build over them.
func newTestRig(t *testing.T, cells ...geom.Cell) (*Constructor, *world.MemoryWorld) {
	t.Helper()
	gt := graph.NewGraphType("transport")
	_, err := gt.AddNodeType(kindBelt, inertDef{})
	require.NoError(t, err)

	mgr := graph.NewManager()
	_, err = mgr.AddGraphType(gt)
	require.NoError(t, err)

	w := world.NewMemoryWorld()
	for _, c := range cells {
		w.PlaceKind(c, kindBelt)
	}
	return NewConstructor(mgr, w), w
}

func lineCells(n int) []geom.Cell {
	cells := make([]geom.Cell, n)
	for i := range cells {
		cells[i] = geom.Cell{X: i}
	}
	return cells
}

// kindCounts tallies the instance's nodes by representation.
func kindCounts(t *testing.T, in *graph.Instance) map[graph.NodeKind]int {
	t.Helper()
	counts := make(map[graph.NodeKind]int)
	for _, ref := range in.Refs() {
		n, err := ref.Node()
		require.NoError(t, err)
		counts[n.Kind()]++
	}
	return counts
}

func TestConstructEntireGraph_Line(t *testing.T) {
	t.Parallel()

	con, w := newTestRig(t, lineCells(5)...)
	uri, err := con.ConstructEntireGraph(geom.Cell{})
	require.NoError(t, err)

	in, ok := con.Manager().Instance(uri)
	require.True(t, ok)
	assert.Equal(t, 5, in.NodeCount())

	counts := kindCounts(t, in)
	assert.Equal(t, 2, counts[graph.KindTerminus])
	assert.Equal(t, 3, counts[graph.KindEdge])

	// Every cell is tagged with this instance.
	for _, c := range lineCells(5) {
		tag, tagged := w.TagAt(c)
		require.True(t, tagged)
		assert.Equal(t, uri, tag.URI)
	}
}

func TestConstructEntireGraph_UnregisteredSeed(t *testing.T) {
	t.Parallel()

	con, _ := newTestRig(t)
	_, err := con.ConstructEntireGraph(geom.Cell{})
	assert.ErrorIs(t, err, ErrUnregisteredKind)
}

func TestCrunchGraph_LineCompaction(t *testing.T) {
	t.Parallel()

	con, w := newTestRig(t, lineCells(5)...)
	uri, err := con.ConstructEntireGraph(geom.Cell{})
	require.NoError(t, err)
	require.NoError(t, con.CrunchGraph(uri))

	in, _ := con.Manager().Instance(uri)
	assert.Equal(t, 3, in.NodeCount())
	counts := kindCounts(t, in)
	assert.Equal(t, 2, counts[graph.KindTerminus])
	assert.Equal(t, 1, counts[graph.KindEdge])

	var edge *graph.Edge
	for _, ref := range in.Refs() {
		if n, _ := ref.Node(); n.Kind() == graph.KindEdge {
			edge = n.(*graph.Edge)
		}
	}
	require.NotNil(t, edge)
	require.Len(t, edge.Cells, 3)
	for i := 1; i < len(edge.Cells); i++ {
		assert.True(t, edge.Cells[i-1].AdjacentTo(edge.Cells[i]))
	}

	// Tags follow the merge: each interior cell now names the one edge.
	for _, c := range edge.Cells {
		tag, tagged := w.TagAt(c)
		require.True(t, tagged)
		assert.Equal(t, edge.ID, tag.Node)
	}
}

func TestCrunchGraph_CornerChain(t *testing.T) {
	t.Parallel()

	// An L of 5 cells: the corner has two connections, so compaction
	// carries straight through it.
	cells := []geom.Cell{
		{X: 0}, {X: 1}, {X: 2}, {X: 2, Z: 1}, {X: 2, Z: 2},
	}
	con, _ := newTestRig(t, cells...)
	uri, err := con.ConstructEntireGraph(cells[0])
	require.NoError(t, err)
	require.NoError(t, con.CrunchGraph(uri))

	in, _ := con.Manager().Instance(uri)
	assert.Equal(t, 3, in.NodeCount())
	counts := kindCounts(t, in)
	assert.Equal(t, 1, counts[graph.KindEdge])
}

func TestCrunchGraph_TShapeJunction(t *testing.T) {
	t.Parallel()

	center := geom.Cell{X: 1}
	cells := []geom.Cell{
		{X: 0}, center, {X: 2}, {X: 1, Z: 1},
	}
	con, _ := newTestRig(t, cells...)
	uri, err := con.ConstructEntireGraph(cells[0])
	require.NoError(t, err)
	require.NoError(t, con.CrunchGraph(uri))

	in, _ := con.Manager().Instance(uri)
	assert.Equal(t, 4, in.NodeCount())
	counts := kindCounts(t, in)
	assert.Equal(t, 3, counts[graph.KindTerminus])
	assert.Equal(t, 1, counts[graph.KindJunction])

	var j *graph.Junction
	for _, ref := range in.Refs() {
		if n, _ := ref.Node(); n.Kind() == graph.KindJunction {
			j = n.(*graph.Junction)
		}
	}
	require.NotNil(t, j)
	assert.Equal(t, center, j.Pos)
	assert.Len(t, j.Links, 3)
	assert.Contains(t, j.Links, geom.West)
	assert.Contains(t, j.Links, geom.East)
	assert.Contains(t, j.Links, geom.South)
}

func TestCrunchGraph_RingBecomesSelfLinkedEdge(t *testing.T) {
	t.Parallel()

	ring := []geom.Cell{
		{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0},
		{X: 2, Z: 1}, {X: 2, Z: 2},
		{X: 1, Z: 2}, {X: 0, Z: 2}, {X: 0, Z: 1},
	}
	con, w := newTestRig(t, ring...)
	uri, err := con.ConstructEntireGraph(ring[0])
	require.NoError(t, err)
	require.NoError(t, con.CrunchGraph(uri))

	in, _ := con.Manager().Instance(uri)
	require.Equal(t, 1, in.NodeCount())

	ref := in.Refs()[0]
	n, err := ref.Node()
	require.NoError(t, err)
	e, isEdge := n.(*graph.Edge)
	require.True(t, isEdge)
	assert.Len(t, e.Cells, 8)
	assert.Same(t, ref, e.Links[graph.EndBack].Neighbor)
	assert.Same(t, ref, e.Links[graph.EndFront].Neighbor)
	assert.True(t, e.BackPos().AdjacentTo(e.FrontPos()))

	for _, c := range ring {
		tag, tagged := w.TagAt(c)
		require.True(t, tagged)
		assert.Equal(t, ref.ID(), tag.Node)
	}
}
