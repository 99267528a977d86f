package routing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route_engine/pkg/ch"
	"route_engine/pkg/expand"
	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
)

// zeroProfile keeps penalties out of the expected numbers.
type zeroProfile struct{}

func (zeroProfile) Way(map[string]string) (profile.WayResult, bool) {
	return profile.WayResult{}, false
}
func (zeroProfile) Node(map[string]string) profile.NodeResult { return profile.NodeResult{} }
func (zeroProfile) TurnPenalty(float64, profile.TravelMode, profile.TravelMode) uint32 {
	return 0
}
func (zeroProfile) UTurnPenalty() (uint32, bool) { return 0, false }
func (zeroProfile) TrafficSignalPenalty() uint32 { return 0 }
func (zeroProfile) Exceptions() []string         { return nil }
func (zeroProfile) UseTurnRestrictions() bool    { return true }

// lonAtMeters converts meters east of the origin into degrees at the
// equator.
func lonAtMeters(m float64) float64 { return m / 111_319.49 }

func buildEngine(t *testing.T, nb *graph.NodeBased) *Engine {
	t.Helper()
	eb := expand.Expand(graph.Compress(nb), zeroProfile{}, zerolog.Nop())
	qg := ch.Contract(eb, ch.Config{Workers: 1}, zerolog.Nop())
	require.NoError(t, qg.Validate())
	ds := &Dataset{
		QueryGraph:  qg,
		Nodes:       eb.Nodes,
		Annotations: eb.Annotations,
		Geometry:    eb.Geometry,
		Coords:      eb.Coords,
		Names:       eb.Names,
		Checksum:    0xfeed,
		Timestamp:   "test",
	}
	return NewEngine(ds, zerolog.Nop())
}

// straightLine is three nodes 1000 m apart on the equator with a
// 36 km/h limit: 1000 deci-seconds per segment.
func straightLine(t *testing.T) *graph.NodeBased {
	t.Helper()
	coords := []geo.Coordinate{
		geo.MakeCoordinate(0, 0),
		geo.MakeCoordinate(0, lonAtMeters(1000)),
		geo.MakeCoordinate(0, lonAtMeters(2000)),
	}
	names := graph.NewStringTable()
	nameID := names.Add("Equator Avenue")

	var edges []graph.NodeBasedEdge
	for i := uint32(0); i < 2; i++ {
		edges = append(edges,
			graph.NodeBasedEdge{Source: i, Target: i + 1, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
			graph.NodeBasedEdge{Source: i + 1, Target: i, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
		)
	}
	return graph.BuildNodeBased(3, coords, []int64{1, 2, 3}, edges, nil, nil, nil, names)
}

func TestRouteStraightLine(t *testing.T) {
	e := buildEngine(t, straightLine(t))

	route, err := e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: lonAtMeters(2000)},
	}, RouteOptions{Metric: -1})
	require.NoError(t, err)

	assert.InDelta(t, 2000.0, route.DistanceM, 2.0)
	assert.InDelta(t, 200.0, route.DurationS, 0.5)
	assert.Equal(t, uint32(2000), route.WeightDs)

	// Three-point geometry: start, the collapsed middle node, end.
	require.Len(t, route.Path, 3)
	assert.Equal(t, graph.HeadOn, route.Path[0].Instruction)
	assert.Equal(t, graph.ReachedYourDestination, route.Path[2].Instruction)
	assert.Equal(t, "Equator Avenue", e.dataset.Names.Get(route.Path[1].NameID))

	// Hints round-trip through the same dataset.
	require.Len(t, route.Hints, 2)
	p, ok := DecodeHint(route.Hints[0], e.dataset.Checksum)
	require.True(t, ok)
	assert.True(t, p.Valid())
	_, ok = DecodeHint(route.Hints[0], 0xbad)
	assert.False(t, ok)
}

// tIntersection builds three arms meeting at node 0, with an optional
// restriction forbidding the 1 -> 0 -> 2 turn.
func tIntersection(t *testing.T, restricted bool) *graph.NodeBased {
	t.Helper()
	coords := []geo.Coordinate{
		geo.MakeCoordinate(0, lonAtMeters(1000)),
		geo.MakeCoordinate(0, 0),
		geo.MakeCoordinate(0, lonAtMeters(2000)),
		geo.MakeCoordinate(0.009, lonAtMeters(1000)),
	}
	names := graph.NewStringTable()
	nameID := names.Add("Tee Road")

	var edges []graph.NodeBasedEdge
	for _, arm := range []uint32{1, 2} {
		edges = append(edges,
			graph.NodeBasedEdge{Source: 0, Target: arm, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
			graph.NodeBasedEdge{Source: arm, Target: 0, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
		)
	}
	// The third arm only leads away, so it offers no detour around a
	// restriction at the tee.
	edges = append(edges, graph.NodeBasedEdge{Source: 0, Target: 3, WeightDs: 1000, DistanceDm: 10000, NameID: nameID})
	var restrictions []graph.Restriction
	if restricted {
		restrictions = []graph.Restriction{{From: 1, Via: 0, To: 2}}
	}
	return graph.BuildNodeBased(4, coords, []int64{10, 11, 12, 13}, edges, nil, nil, restrictions, names)
}

func TestRouteRestrictedTurn(t *testing.T) {
	// Without the restriction the straight-through route works.
	open := buildEngine(t, tIntersection(t, false))
	from := Waypoint{Lat: 0, Lon: lonAtMeters(100)}
	to := Waypoint{Lat: 0, Lon: lonAtMeters(1900)}

	route, err := open.Route(context.Background(), []Waypoint{from, to}, RouteOptions{Metric: -1})
	require.NoError(t, err)
	assert.InDelta(t, 1800.0, route.DistanceM, 5.0)

	// The no-restriction at the tee leaves no way through.
	closed := buildEngine(t, tIntersection(t, true))
	_, err = closed.Route(context.Background(), []Waypoint{from, to}, RouteOptions{Metric: -1})
	assert.ErrorIs(t, err, ErrNoRoute)
}

// blockFixture is the u-turn scenario: the edge 0-1 carries both
// phantoms, a 3000 m chain 1-2-3-0 closes the block, and spurs keep the
// corners from compressing away.
func blockFixture(t *testing.T) *graph.NodeBased {
	t.Helper()
	coords := []geo.Coordinate{
		geo.MakeCoordinate(0, 0),
		geo.MakeCoordinate(0, lonAtMeters(1000)),
		geo.MakeCoordinate(0.009, lonAtMeters(1000)),
		geo.MakeCoordinate(0.009, 0),
		geo.MakeCoordinate(-0.0009, 0),
		geo.MakeCoordinate(-0.0009, lonAtMeters(1000)),
	}
	names := graph.NewStringTable()
	nameID := names.Add("Block Street")

	bidir := func(u, v, weight, dist uint32) []graph.NodeBasedEdge {
		return []graph.NodeBasedEdge{
			{Source: u, Target: v, WeightDs: weight, DistanceDm: dist, NameID: nameID},
			{Source: v, Target: u, WeightDs: weight, DistanceDm: dist, NameID: nameID},
		}
	}

	var edges []graph.NodeBasedEdge
	edges = append(edges, bidir(0, 1, 1000, 10000)...) // the phantom edge
	edges = append(edges, bidir(1, 2, 1000, 10000)...) // around the block
	edges = append(edges, bidir(2, 3, 1000, 10000)...)
	edges = append(edges, bidir(3, 0, 1000, 10000)...)
	// Outbound-only spurs keep the corners from compressing away
	// without offering a dead-end bounce.
	edges = append(edges,
		graph.NodeBasedEdge{Source: 0, Target: 4, WeightDs: 100, DistanceDm: 1000, NameID: nameID},
		graph.NodeBasedEdge{Source: 1, Target: 5, WeightDs: 100, DistanceDm: 1000, NameID: nameID},
	)

	return graph.BuildNodeBased(6, coords, []int64{20, 21, 22, 23, 24, 25}, edges, nil, nil, nil, names)
}

func TestRouteSameEdgeUTurn(t *testing.T) {
	e := buildEngine(t, blockFixture(t))

	// Pin the phantom directions through hints: the forward node is the
	// eastbound side of the 0-1 edge, offsets 800 m and 200 m.
	var east, west uint32 = graph.InvalidNode, graph.InvalidNode
	for i := range e.dataset.Nodes {
		n := e.dataset.Nodes[i]
		if len(e.dataset.Geometry.Chain(n.GeometryID)) != 1 {
			continue
		}
		if n.NBSource == 0 && n.NBTarget == 1 {
			east = uint32(i)
		}
		if n.NBSource == 1 && n.NBTarget == 0 {
			west = uint32(i)
		}
	}
	require.NotEqual(t, graph.InvalidNode, east)
	require.NotEqual(t, graph.InvalidNode, west)

	srcPhantom := PhantomPoint{
		ForwardNode: east, ReverseNode: west,
		FwdOffsetDs: 800, FwdOffsetDm: 8000,
		RevOffsetDs: 200, RevOffsetDm: 2000,
		Location: geo.MakeCoordinate(0, lonAtMeters(800)),
	}
	tgtPhantom := PhantomPoint{
		ForwardNode: east, ReverseNode: west,
		FwdOffsetDs: 200, FwdOffsetDm: 2000,
		RevOffsetDs: 800, RevOffsetDm: 8000,
		Location: geo.MakeCoordinate(0, lonAtMeters(200)),
	}

	src := Waypoint{Hint: EncodeHint(srcPhantom, e.dataset.Checksum)}
	tgt := Waypoint{Hint: EncodeHint(tgtPhantom, e.dataset.Checksum)}

	// Forbidden u-turn: exit forward, loop the block, re-enter.
	route, err := e.Route(context.Background(), []Waypoint{src, tgt}, RouteOptions{Metric: -1})
	require.NoError(t, err)
	assert.InDelta(t, 3400.0, route.DistanceM, 10.0)
	assert.Equal(t, uint32(3400), route.WeightDs)

	// Allowed u-turn: reverse within the edge, 600 m.
	src.UTurnAllowed = true
	route, err = e.Route(context.Background(), []Waypoint{src, tgt}, RouteOptions{Metric: -1})
	require.NoError(t, err)
	assert.InDelta(t, 600.0, route.DistanceM, 5.0)
	assert.Equal(t, uint32(600), route.WeightDs)
	assert.Equal(t, graph.UTurn, route.Path[0].Instruction)
}

func TestRouteSameEdgeForwardOrder(t *testing.T) {
	e := buildEngine(t, straightLine(t))

	route, err := e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: lonAtMeters(200)},
		{Lat: 0, Lon: lonAtMeters(800)},
	}, RouteOptions{Metric: -1})
	require.NoError(t, err)

	assert.InDelta(t, 600.0, route.DistanceM, 5.0)
	// Sub-segment of one edge: start and end only, no expansion.
	assert.Len(t, route.Path, 2)
}

func TestRouteViaWaypoints(t *testing.T) {
	e := buildEngine(t, straightLine(t))

	route, err := e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: lonAtMeters(1000)},
		{Lat: 0, Lon: lonAtMeters(2000)},
	}, RouteOptions{Metric: -1})
	require.NoError(t, err)

	assert.InDelta(t, 2000.0, route.DistanceM, 2.0)

	// The second leg announces the via point and legs stay distinct.
	vias := 0
	for _, p := range route.Path {
		if p.Instruction == graph.ReachViaLocation {
			vias++
		}
	}
	assert.Equal(t, 1, vias)
}

// junctionChain is a line of six junctions with a spur at each interior
// node, so no chain compression happens and the hierarchy must build
// shortcuts across the middle.
func junctionChain(t *testing.T) *graph.NodeBased {
	t.Helper()
	var coords []geo.Coordinate
	for i := 0; i < 6; i++ {
		coords = append(coords, geo.MakeCoordinate(0, lonAtMeters(float64(i)*1000)))
	}
	spurBase := uint32(len(coords))
	for i := 1; i <= 4; i++ {
		coords = append(coords, geo.MakeCoordinate(0.001, lonAtMeters(float64(i)*1000)))
	}

	names := graph.NewStringTable()
	nameID := names.Add("Junction Row")

	var edges []graph.NodeBasedEdge
	addBidir := func(u, v, w, d uint32) {
		edges = append(edges,
			graph.NodeBasedEdge{Source: u, Target: v, WeightDs: w, DistanceDm: d, NameID: nameID},
			graph.NodeBasedEdge{Source: v, Target: u, WeightDs: w, DistanceDm: d, NameID: nameID},
		)
	}
	for i := uint32(0); i < 5; i++ {
		addBidir(i, i+1, 1000, 10000)
	}
	for i := uint32(1); i <= 4; i++ {
		addBidir(i, spurBase+i-1, 100, 1000)
	}

	ext := make([]int64, len(coords))
	for i := range ext {
		ext[i] = int64(i + 1)
	}
	return graph.BuildNodeBased(uint32(len(coords)), coords, ext, edges, nil, nil, nil, names)
}

func TestRouteUnpacksShortcuts(t *testing.T) {
	e := buildEngine(t, junctionChain(t))

	shortcuts := 0
	for _, edge := range e.dataset.QueryGraph.Edges {
		if edge.Data.IsShortcut {
			shortcuts++
		}
	}
	require.Greater(t, shortcuts, 0, "the junction chain must contract into shortcuts")

	route, err := e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: lonAtMeters(5000)},
	}, RouteOptions{Metric: -1})
	require.NoError(t, err)

	// Unpacked weight and geometry match the original edge sequence.
	assert.Equal(t, uint32(5000), route.WeightDs)
	assert.InDelta(t, 5000.0, route.DistanceM, 5.0)
	require.Len(t, route.Path, 6)
	for i := 1; i < 5; i++ {
		assert.Equal(t, uint32(1000), route.Path[i].DurationDs)
	}
}

func TestRouteErrors(t *testing.T) {
	e := buildEngine(t, straightLine(t))

	_, err := e.Route(context.Background(), []Waypoint{{Lat: 0, Lon: 0}}, RouteOptions{Metric: -1})
	assert.ErrorIs(t, err, ErrTooFewWaypoints)

	_, err = e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: 0},
		{Lat: 45, Lon: 100},
	}, RouteOptions{Metric: -1})
	assert.ErrorIs(t, err, ErrNoSegment)
}

func TestRouteTimeout(t *testing.T) {
	e := buildEngine(t, blockFixture(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A query that needs the bidirectional search observes the expired
	// deadline at the settle boundary.
	_, err := e.Route(ctx, []Waypoint{
		{Lat: 0, Lon: lonAtMeters(100)},
		{Lat: 0.009, Lon: lonAtMeters(500)},
	}, RouteOptions{Metric: -1})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRouteDisabledSegments(t *testing.T) {
	nb := straightLine(t)
	// Disable both directions of every segment, as a zero-speed
	// override would.
	for i := range nb.Edges {
		nb.Edges[i].WeightDs = graph.DisabledWeightDs
	}
	e := buildEngine(t, nb)

	_, err := e.Route(context.Background(), []Waypoint{
		{Lat: 0, Lon: lonAtMeters(100)},
		{Lat: 0, Lon: lonAtMeters(1900)},
	}, RouteOptions{Metric: -1})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSnapBearingFilter(t *testing.T) {
	e := buildEngine(t, straightLine(t))

	// Facing east keeps exactly one direction of the east-west road.
	p, err := e.snapper.Snap(0, lonAtMeters(500), SnapOptions{
		Bearing: &BearingFilter{Bearing: 90, Tolerance: 30},
	})
	require.NoError(t, err)
	assert.True(t, (p.ForwardNode == graph.InvalidNode) != (p.ReverseNode == graph.InvalidNode),
		"one direction survives the bearing filter")

	// Facing north matches neither direction of an east-west road.
	_, err = e.snapper.Snap(0, lonAtMeters(500), SnapOptions{
		Bearing: &BearingFilter{Bearing: 0, Tolerance: 20},
	})
	assert.ErrorIs(t, err, ErrNoSegment)
}
