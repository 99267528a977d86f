package osmdata

import (
	"math"

	"github.com/paulmach/osm"
	"github.com/rs/zerolog"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
)

// BuildGraph remaps the parse result onto dense internal ids and
// produces the node-based graph. External ids survive only in the
// ExternalIDs table for the persistence boundary.
func BuildGraph(res *ParseResult, logger zerolog.Logger) *graph.NodeBased {
	idByExternal := make(map[osm.NodeID]uint32)
	var externalIDs []int64
	var coords []geo.Coordinate

	internal := func(id osm.NodeID) (uint32, bool) {
		if idx, ok := idByExternal[id]; ok {
			return idx, true
		}
		c, ok := res.NodeCoord[id]
		if !ok {
			return 0, false
		}
		idx := uint32(len(externalIDs))
		idByExternal[id] = idx
		externalIDs = append(externalIDs, int64(id))
		coords = append(coords, geo.MakeCoordinate(c[0], c[1]))
		return idx, true
	}

	names := graph.NewStringTable()
	var edges []graph.NodeBasedEdge
	skipped := 0

	for _, way := range res.Ways {
		nameID := names.Add(way.Result.Name)
		lanesID := names.Add(way.Result.Lanes)

		for i := 0; i+1 < len(way.NodeIDs); i++ {
			fromExt, toExt := way.NodeIDs[i], way.NodeIDs[i+1]
			fromCoord, fromOk := res.NodeCoord[fromExt]
			toCoord, toOk := res.NodeCoord[toExt]
			if !fromOk || !toOk {
				skipped++
				continue
			}

			from, _ := internal(fromExt)
			to, _ := internal(toExt)
			meters := geo.Haversine(fromCoord[0], fromCoord[1], toCoord[0], toCoord[1])
			distDm := dmFromMeters(meters)

			common := graph.NodeBasedEdge{
				DistanceDm:       distDm,
				NameID:           nameID,
				LanesID:          lanesID,
				Class:            way.Result.Classification,
				AccessRestricted: way.Result.AccessRestricted,
				Roundabout:       way.Result.Roundabout,
				ContraFlow:       way.Result.ContraFlow,
			}

			if way.Result.ForwardSpeedKmh > 0 {
				e := common
				e.Source, e.Target = from, to
				e.WeightDs = dsFromSpeed(meters, way.Result.ForwardSpeedKmh)
				e.Mode = way.Result.ModeForward
				edges = append(edges, e)
			}
			if way.Result.BackwardSpeedKmh > 0 {
				e := common
				e.Source, e.Target = to, from
				e.WeightDs = dsFromSpeed(meters, way.Result.BackwardSpeedKmh)
				e.Mode = way.Result.ModeBackward
				edges = append(edges, e)
			}
		}
	}

	numNodes := uint32(len(externalIDs))
	barrier := make([]bool, numNodes)
	signal := make([]bool, numNodes)
	for ext := range res.Barrier {
		if idx, ok := idByExternal[ext]; ok {
			barrier[idx] = true
		}
	}
	for ext := range res.Signal {
		if idx, ok := idByExternal[ext]; ok {
			signal[idx] = true
		}
	}

	var restrictions []graph.Restriction
	for _, r := range res.Restrictions {
		from, ok1 := idByExternal[r.FromNode]
		via, ok2 := idByExternal[r.ViaNode]
		to, ok3 := idByExternal[r.ToNode]
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		restrictions = append(restrictions, graph.Restriction{
			From: from, Via: via, To: to, Only: r.Only,
		})
	}

	if skipped > 0 {
		logger.Warn().Int("segments", skipped).Msg("segments with missing coordinates skipped")
	}
	logger.Info().
		Uint32("nodes", numNodes).
		Int("edges", len(edges)).
		Int("restrictions", len(restrictions)).
		Msg("node-based graph assembled")

	return graph.BuildNodeBased(numNodes, coords, externalIDs, edges, barrier, signal, restrictions, names)
}

// dsFromSpeed converts a segment length and speed into deci-seconds,
// never producing a zero weight.
func dsFromSpeed(meters, speedKmh float64) uint32 {
	ds := math.Round(meters * 36.0 / speedKmh)
	if ds < 1 {
		ds = 1
	}
	return uint32(ds)
}

func dmFromMeters(meters float64) uint32 {
	dm := math.Round(meters * 10)
	if dm < 1 {
		dm = 1
	}
	return uint32(dm)
}
