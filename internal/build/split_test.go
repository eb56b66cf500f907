package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
)

// compactedLine builds a 5-cell line and compacts it, returning the
// middle edge's ref.
func compactedLine(t *testing.T) (*Constructor, *graph.Instance, *graph.NodeRef) {
	t.Helper()
	con, _ := newTestRig(t, lineCells(5)...)
	uri, err := con.ConstructEntireGraph(geom.Cell{})
	require.NoError(t, err)
	require.NoError(t, con.CrunchGraph(uri))

	in, _ := con.Manager().Instance(uri)
	for _, ref := range in.Refs() {
		if n, _ := ref.Node(); n.Kind() == graph.KindEdge {
			return con, in, ref
		}
	}
	t.Fatal("no edge after compaction")
	return nil, nil, nil
}

func TestSplitEdge_Interior(t *testing.T) {
	t.Parallel()

	con, in, edgeRef := compactedLine(t)
	oldID := edgeRef.ID()

	jref, err := con.SplitEdge(edgeRef, geom.Cell{X: 2})
	require.NoError(t, err)

	// T - E - J - E - T
	assert.Equal(t, 5, in.NodeCount())

	jn, err := jref.Node()
	require.NoError(t, err)
	j, isJunction := jn.(*graph.Junction)
	require.True(t, isJunction)
	assert.Equal(t, geom.Cell{X: 2}, j.Pos)

	// The straight line splits into one-cell edges on either side of the
	// junction; the original id survives on the behind segment.
	require.Contains(t, j.Links, geom.West)
	require.Contains(t, j.Links, geom.East)

	behindNode, err := edgeRef.Node()
	require.NoError(t, err)
	behind := behindNode.(*graph.Edge)
	assert.Equal(t, oldID, behind.ID)
	assert.Len(t, behind.Cells, 1)
	assert.Contains(t, behindNode.Neighbors(), jref)

	for _, side := range []geom.Side{geom.West, geom.East} {
		seg, err := j.Links[side].Node()
		require.NoError(t, err)
		e, isEdge := seg.(*graph.Edge)
		require.True(t, isEdge)
		assert.Len(t, e.Cells, 1)
		assert.Contains(t, seg.Neighbors(), jref)
	}

	tag, tagged := con.w.TagAt(geom.Cell{X: 2})
	require.True(t, tagged)
	assert.Equal(t, jref.ID(), tag.Node)
	for _, c := range []geom.Cell{{X: 1}, {X: 3}} {
		side, err := geom.SideBetween(geom.Cell{X: 2}, c)
		require.NoError(t, err)
		tag, _ = con.w.TagAt(c)
		assert.Equal(t, j.Links[side].ID(), tag.Node)
	}
}

func TestSplitEdge_Endpoint(t *testing.T) {
	t.Parallel()

	con, in, edgeRef := compactedLine(t)

	n, _ := edgeRef.Node()
	e := n.(*graph.Edge)
	endCell := e.BackPos()
	far := e.Links[graph.EndBack].Neighbor

	jref, err := con.SplitEdge(edgeRef, endCell)
	require.NoError(t, err)
	assert.Equal(t, 4, in.NodeCount())

	jn, _ := jref.Node()
	j := jn.(*graph.Junction)
	assert.Equal(t, endCell, j.Pos)
	assert.Len(t, j.Links, 2)

	// The shrunk edge and the old far neighbor both hang off the junction.
	shrunk, _ := edgeRef.Node()
	assert.Len(t, shrunk.Positions(), 2)
	assert.Contains(t, shrunk.Neighbors(), jref)

	farNode, err := far.Node()
	require.NoError(t, err)
	assert.Contains(t, farNode.Neighbors(), jref)
}

func TestSplitEdge_SingleCellReplacedInPlace(t *testing.T) {
	t.Parallel()

	con, _ := newTestRig(t, lineCells(3)...)
	uri, err := con.ConstructEntireGraph(geom.Cell{})
	require.NoError(t, err)

	in, _ := con.Manager().Instance(uri)
	var edgeRef *graph.NodeRef
	for _, ref := range in.Refs() {
		if n, _ := ref.Node(); n.Kind() == graph.KindEdge {
			edgeRef = ref
		}
	}
	require.NotNil(t, edgeRef)
	oldID := edgeRef.ID()

	jref, err := con.SplitEdge(edgeRef, geom.Cell{X: 1})
	require.NoError(t, err)
	assert.Same(t, edgeRef, jref)
	assert.Equal(t, oldID, jref.ID())

	n, _ := jref.Node()
	j, isJunction := n.(*graph.Junction)
	require.True(t, isJunction)
	assert.Len(t, j.Links, 2)
	assert.Equal(t, 3, in.NodeCount())
}

func TestSplitEdge_Errors(t *testing.T) {
	t.Parallel()

	con, in, edgeRef := compactedLine(t)

	_, err := con.SplitEdge(edgeRef, geom.Cell{X: 40})
	assert.ErrorIs(t, err, ErrSplitOutside)

	term := in.NewTerminus(geom.Cell{Y: 9}, 0)
	_, err = con.SplitEdge(term, geom.Cell{Y: 9})
	assert.ErrorIs(t, err, ErrNotAnEdge)
}

func TestSplitThenCrunchRestoresChain(t *testing.T) {
	t.Parallel()

	// Splitting an interior cell and dissolving the junction back into an
	// edge, then crunching, reproduces the original three-node chain.
	con, in, edgeRef := compactedLine(t)
	jref, err := con.SplitEdge(edgeRef, geom.Cell{X: 2})
	require.NoError(t, err)
	require.Equal(t, 5, in.NodeCount())

	jn, _ := jref.Node()
	j := jn.(*graph.Junction)
	rep := &graph.Edge{Cells: []geom.Cell{j.Pos}}
	rep.Links[graph.EndBack] = graph.EdgeLink{Neighbor: j.Links[geom.West], Side: geom.West}
	rep.Links[graph.EndFront] = graph.EdgeLink{Neighbor: j.Links[geom.East], Side: geom.East}
	require.NoError(t, in.Replace(jref, rep))

	_, err = con.CrunchChain(jref)
	require.NoError(t, err)

	assert.Equal(t, 3, in.NodeCount())
	n, err := jref.Node()
	require.NoError(t, err)
	e, isEdge := n.(*graph.Edge)
	require.True(t, isEdge)
	assert.Len(t, e.Cells, 3)
}
