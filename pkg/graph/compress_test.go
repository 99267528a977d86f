package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route_engine/pkg/geo"
)

// lineGraph builds the bidirectional chain 0 - 1 - 2 - 3 with the given
// per-segment weights and a shared name id.
func lineGraph(t *testing.T, weights [3]uint32, opts ...func(*NodeBased)) *NodeBased {
	t.Helper()
	coords := []geo.Coordinate{
		geo.MakeCoordinate(1.300, 103.80),
		geo.MakeCoordinate(1.300, 103.81),
		geo.MakeCoordinate(1.300, 103.82),
		geo.MakeCoordinate(1.300, 103.83),
	}
	names := NewStringTable()
	nameID := names.Add("High Street")

	var edges []NodeBasedEdge
	for i := uint32(0); i < 3; i++ {
		edges = append(edges,
			NodeBasedEdge{Source: i, Target: i + 1, WeightDs: weights[i], DistanceDm: 100, NameID: nameID},
			NodeBasedEdge{Source: i + 1, Target: i, WeightDs: weights[i], DistanceDm: 100, NameID: nameID},
		)
	}

	g := BuildNodeBased(4, coords, []int64{10, 20, 30, 40}, edges, nil, nil, nil, names)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func TestCompressCollapsesChain(t *testing.T) {
	c := Compress(lineGraph(t, [3]uint32{100, 200, 300}))

	require.Len(t, c.Edges, 2)

	fwd := c.Edges[c.FindEdge(0, 3)]
	assert.Equal(t, uint32(600), fwd.WeightDs)
	assert.Equal(t, uint32(300), fwd.DistanceDm)

	chain := c.Geometry.Chain(fwd.GeometryID)
	require.Len(t, chain, 3)
	assert.Equal(t, uint32(1), chain[0].Node)
	assert.Equal(t, uint32(2), chain[1].Node)
	assert.Equal(t, uint32(3), chain[2].Node)
	assert.Equal(t, []uint32{100, 200, 300},
		[]uint32{chain[0].FwdWeightDs, chain[1].FwdWeightDs, chain[2].FwdWeightDs})

	rev := c.Edges[c.FindEdge(3, 0)]
	assert.Equal(t, uint32(600), rev.WeightDs)
	revChain := c.Geometry.Chain(rev.GeometryID)
	require.Len(t, revChain, 3)
	assert.Equal(t, uint32(2), revChain[0].Node)
	assert.Equal(t, uint32(0), revChain[2].Node)
}

func TestCompressWeightInvariant(t *testing.T) {
	c := Compress(lineGraph(t, [3]uint32{70, 90, 40}))

	for _, e := range c.Edges {
		assert.Equal(t, e.WeightDs, c.Geometry.SumForward(e.GeometryID),
			"edge %d->%d", e.Source, e.Target)
	}
}

func TestCompressSplitsAtSignal(t *testing.T) {
	c := Compress(lineGraph(t, [3]uint32{100, 200, 300}, func(g *NodeBased) {
		g.Signal[1] = true
	}))

	// Node 1 stays addressable: 0-1 and 1-3 survive separately.
	assert.NotEqual(t, InvalidNode, c.FindEdge(0, 1))
	assert.NotEqual(t, InvalidNode, c.FindEdge(1, 3))
	assert.Equal(t, InvalidNode, c.FindEdge(0, 3))
}

func TestCompressSplitsAtBarrier(t *testing.T) {
	c := Compress(lineGraph(t, [3]uint32{100, 200, 300}, func(g *NodeBased) {
		g.Barrier[2] = true
	}))

	assert.NotEqual(t, InvalidNode, c.FindEdge(0, 2))
	assert.NotEqual(t, InvalidNode, c.FindEdge(2, 3))
}

func TestCompressRespectsNameChange(t *testing.T) {
	g := lineGraph(t, [3]uint32{100, 200, 300})
	// Rename the final segment pair: node 2 no longer collapsible.
	for i := range g.Edges {
		e := &g.Edges[i]
		if (e.Source == 2 && e.Target == 3) || (e.Source == 3 && e.Target == 2) {
			e.NameID = g.Names.Add("Low Street")
		}
	}

	c := Compress(g)
	assert.NotEqual(t, InvalidNode, c.FindEdge(0, 2))
	assert.NotEqual(t, InvalidNode, c.FindEdge(2, 3))
	assert.Equal(t, InvalidNode, c.FindEdge(0, 3))
}

func TestCompressOnewayChain(t *testing.T) {
	coords := []geo.Coordinate{
		geo.MakeCoordinate(1.300, 103.80),
		geo.MakeCoordinate(1.300, 103.81),
		geo.MakeCoordinate(1.300, 103.82),
	}
	edges := []NodeBasedEdge{
		{Source: 0, Target: 1, WeightDs: 50, DistanceDm: 100},
		{Source: 1, Target: 2, WeightDs: 60, DistanceDm: 100},
	}
	c := Compress(BuildNodeBased(3, coords, []int64{1, 2, 3}, edges, nil, nil, nil, nil))

	require.Len(t, c.Edges, 1)
	e := c.Edges[0]
	assert.Equal(t, uint32(0), e.Source)
	assert.Equal(t, uint32(2), e.Target)
	assert.Equal(t, uint32(110), e.WeightDs)
}

func TestCompressKeepsParallelWays(t *testing.T) {
	coords := []geo.Coordinate{
		geo.MakeCoordinate(1.300, 103.80),
		geo.MakeCoordinate(1.300, 103.81),
		geo.MakeCoordinate(1.300, 103.82),
	}
	// Two distinct oneway edges 1 -> 2: node 1 must not collapse.
	edges := []NodeBasedEdge{
		{Source: 0, Target: 1, WeightDs: 50, DistanceDm: 100},
		{Source: 1, Target: 2, WeightDs: 60, DistanceDm: 100},
		{Source: 1, Target: 2, WeightDs: 80, DistanceDm: 140},
	}
	c := Compress(BuildNodeBased(3, coords, []int64{1, 2, 3}, edges, nil, nil, nil, nil))

	assert.Len(t, c.Edges, 3)
}
