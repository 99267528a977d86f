package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDiamond(t *testing.T) *QueryGraph {
	t.Helper()
	// 0 -> 1 -> 2 plus the shortcut 0 -> 2 via 1.
	input := []InputEdge{
		{Source: 0, Target: 1, Data: EdgeData{WeightDs: 10, DurationDs: 10, Forward: true, Backward: true, Payload: 0}},
		{Source: 1, Target: 2, Data: EdgeData{WeightDs: 20, DurationDs: 20, Forward: true, Backward: true, Payload: 1}},
		{Source: 0, Target: 2, Data: EdgeData{WeightDs: 30, DurationDs: 30, Forward: true, Backward: true, IsShortcut: true, Payload: 1}},
	}
	return BuildQueryGraph(3, input)
}

func TestQueryGraphValidate(t *testing.T) {
	g := buildDiamond(t)
	require.NoError(t, g.Validate())
}

func TestQueryGraphValidateBrokenShortcut(t *testing.T) {
	g := buildDiamond(t)
	// Corrupt the shortcut weight: halves no longer sum.
	idx := g.FindSmallestEdge(0, 2, func(d EdgeData) bool { return d.IsShortcut })
	require.NotEqual(t, InvalidNode, idx)
	g.Edges[idx].Data.WeightDs = 31
	assert.Error(t, g.Validate())
}

func TestQueryGraphCSRLayout(t *testing.T) {
	g := buildDiamond(t)

	assert.Equal(t, uint32(3), g.NumNodes)
	assert.Equal(t, []uint32{0, 2, 3, 3}, g.FirstOut)

	// Edges of node 0 sorted by target.
	start, end := g.AdjacentEdges(0)
	require.Equal(t, uint32(2), end-start)
	assert.Equal(t, uint32(1), g.Edges[start].Target)
	assert.Equal(t, uint32(2), g.Edges[start+1].Target)

	assert.Equal(t, uint32(0), g.EdgeSource(0))
	assert.Equal(t, uint32(0), g.EdgeSource(1))
	assert.Equal(t, uint32(1), g.EdgeSource(2))
}

func TestQueryGraphUnpackEdge(t *testing.T) {
	// An upward-only shortcut stored at the lower endpoint must be
	// findable from both sides.
	input := []InputEdge{
		{Source: 0, Target: 2, Data: EdgeData{WeightDs: 30, Forward: true, Backward: false}},
	}
	g := BuildQueryGraph(3, input)

	data, ok := g.UnpackEdge(0, 2, true)
	require.True(t, ok)
	assert.Equal(t, uint32(30), data.WeightDs)

	// Traveling 2 -> 0 in the reverse search uses the same stored edge.
	data, ok = g.UnpackEdge(2, 0, false)
	require.True(t, ok)
	assert.Equal(t, uint32(30), data.WeightDs)

	_, ok = g.UnpackEdge(2, 0, true)
	assert.False(t, ok)
}

func TestBitVector(t *testing.T) {
	v := NewBitVector(130)
	v.Set(0)
	v.Set(64)
	v.Set(129)

	assert.True(t, v.Get(0))
	assert.True(t, v.Get(64))
	assert.True(t, v.Get(129))
	assert.False(t, v.Get(1))
	assert.Equal(t, uint32(3), v.Count())

	round := BitVectorFromWords(v.Words(), v.Len())
	assert.True(t, round.Get(129))
}

func TestTurnDirectionBins(t *testing.T) {
	assert.Equal(t, GoStraight, TurnDirection(180))
	assert.Equal(t, TurnRight, TurnDirection(90))
	assert.Equal(t, TurnLeft, TurnDirection(270))
	assert.Equal(t, TurnSharpRight, TurnDirection(45))
	assert.Equal(t, TurnSlightLeft, TurnDirection(210))
	assert.Equal(t, UTurn, TurnDirection(0))
	assert.Equal(t, UTurn, TurnDirection(359))

	assert.False(t, NoTurn.IsNecessary())
	assert.False(t, StayOnRoundAbout.IsNecessary())
	assert.True(t, TurnLeft.IsNecessary())
}

func TestStringTable(t *testing.T) {
	tab := NewStringTable()
	assert.Equal(t, uint32(0), tab.Add(""))

	a := tab.Add("Main Street")
	b := tab.Add("Main Street")
	assert.Equal(t, a, b)
	assert.Equal(t, "Main Street", tab.Get(a))
	assert.Equal(t, "", tab.Get(999))

	round := TableFromValues(tab.Values())
	assert.Equal(t, "Main Street", round.Get(a))
}
