// Package expand builds the edge-based graph: every surviving directed
// node-based edge becomes a node, every legal turn becomes an edge whose
// weight is the target segment's traversal cost plus the turn penalty.
// Turn restrictions, barriers, and traffic signals are resolved here;
// downstream stages never see them again.
package expand

import (
	"github.com/rs/zerolog"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
)

// restrictionIndex answers turn-legality queries keyed by the entry
// edge (from, via).
type restrictionIndex struct {
	only map[[2]uint32]uint32   // (from, via) -> sole permitted target
	no   map[[3]uint32]struct{} // (from, via, to) forbidden
}

func buildRestrictionIndex(restrictions []graph.Restriction) *restrictionIndex {
	idx := &restrictionIndex{
		only: make(map[[2]uint32]uint32),
		no:   make(map[[3]uint32]struct{}),
	}
	for _, r := range restrictions {
		if r.Only {
			idx.only[[2]uint32{r.From, r.Via}] = r.To
		} else {
			idx.no[[3]uint32{r.From, r.Via, r.To}] = struct{}{}
		}
	}
	return idx
}

// legal reports whether the turn from -> via -> to survives the
// restriction set.
func (idx *restrictionIndex) legal(from, via, to uint32) bool {
	if sole, ok := idx.only[[2]uint32{from, via}]; ok && sole != to {
		return false
	}
	_, forbidden := idx.no[[3]uint32{from, via, to}]
	return !forbidden
}

// Expand converts the compressed node-based graph into the edge-based
// graph the contractor and query engine run on.
func Expand(c *graph.Compressed, prof profile.Profile, logger zerolog.Logger) *graph.EdgeBased {
	eb := &graph.EdgeBased{
		Geometry: c.Geometry,
		Coords:   c.Coords,
		Names:    c.Names,
	}

	// One edge-based node per surviving directed edge; ids follow the
	// CSR edge order so adjacency lookups stay free.
	eb.Nodes = make([]graph.EdgeBasedNode, len(c.Edges))
	for i, e := range c.Edges {
		eb.Nodes[i] = graph.EdgeBasedNode{
			NBSource:         e.Source,
			NBTarget:         e.Target,
			GeometryID:       e.GeometryID,
			NameID:           e.NameID,
			WeightDs:         e.WeightDs,
			DurationDs:       e.WeightDs,
			DistanceDm:       e.DistanceDm,
			Class:            e.Class,
			Mode:             e.Mode,
			AccessRestricted: e.AccessRestricted,
			Roundabout:       e.Roundabout,
		}
	}

	restrictions := buildRestrictionIndex(c.Restrictions)
	uturnPenalty, uturnAllowed := prof.UTurnPenalty()
	signalPenalty := prof.TrafficSignalPenalty()

	// Inbound adjacency: edge ids arriving at each node.
	inEdges := make([][]uint32, c.NumNodes)
	for i := range c.Edges {
		inEdges[c.Edges[i].Target] = append(inEdges[c.Edges[i].Target], uint32(i))
	}

	skippedRestricted := 0
	skippedBarrier := 0

	for v := uint32(0); v < c.NumNodes; v++ {
		if c.Barrier[v] {
			start, end := c.EdgesFrom(v)
			skippedBarrier += int(end - start)
			continue
		}

		outStart, outEnd := c.EdgesFrom(v)

		for _, inID := range inEdges[v] {
			e1 := &c.Edges[inID]
			u := e1.Source

			for e2ID := outStart; e2ID < outEnd; e2ID++ {
				e2 := &c.Edges[e2ID]
				w := e2.Target

				// A u-turn retraces the entry edge; a parallel loop back
				// to the same node is an ordinary turn.
				isUTurn := w == u && retracesChain(c, e1, e2)
				if isUTurn && !uturnAllowed && !isDeadEnd(c, v, u) {
					continue
				}
				if !restrictions.legal(u, v, w) {
					skippedRestricted++
					continue
				}

				angle := geo.TurnAngle(
					pointBefore(c, e1),
					c.Coords[v],
					pointAfter(c, e2),
				)

				instruction := classify(angle, e1, e2, isUTurn)

				weight := e2.WeightDs + prof.TurnPenalty(angle, e1.Mode, e2.Mode)
				if isUTurn {
					weight += uturnPenalty
				}
				if c.Signal[v] {
					weight += signalPenalty
				}

				annotationID := uint32(len(eb.Annotations))
				eb.Annotations = append(eb.Annotations, graph.EdgeAnnotation{
					ViaNode:     uint32(e2ID),
					NameID:      e2.NameID,
					Instruction: instruction,
				})
				eb.Edges = append(eb.Edges, graph.EdgeBasedEdge{
					Source:       inID,
					Target:       uint32(e2ID),
					WeightDs:     weight,
					DurationDs:   weight,
					DistanceDm:   e2.DistanceDm,
					AnnotationID: annotationID,
				})
			}
		}
	}

	graph.TagComponents(eb)

	logger.Info().
		Int("edge_based_nodes", len(eb.Nodes)).
		Int("edge_based_edges", len(eb.Edges)).
		Int("turns_restricted", skippedRestricted).
		Int("turns_blocked_by_barrier", skippedBarrier).
		Msg("edge expansion complete")

	return eb
}

// retracesChain reports whether e2 travels e1's chain backwards: same
// segment count, interior nodes in opposite order.
func retracesChain(c *graph.Compressed, e1, e2 *graph.NodeBasedEdge) bool {
	fwd := c.Geometry.Chain(e1.GeometryID)
	rev := c.Geometry.Chain(e2.GeometryID)
	if len(fwd) != len(rev) {
		return false
	}
	n := len(fwd)
	if rev[n-1].Node != e1.Source {
		return false
	}
	for i := 0; i < n-1; i++ {
		if rev[i].Node != fwd[n-2-i].Node {
			return false
		}
	}
	return true
}

// isDeadEnd reports whether the only way onward from v leads back to u.
func isDeadEnd(c *graph.Compressed, v, u uint32) bool {
	start, end := c.EdgesFrom(v)
	for e := start; e < end; e++ {
		if c.Edges[e].Target != u {
			return false
		}
	}
	return end > start
}

// pointBefore returns the coordinate immediately preceding the target of
// an inbound edge, using the geometry chain when the edge has interiors.
func pointBefore(c *graph.Compressed, e *graph.NodeBasedEdge) geo.Coordinate {
	chain := c.Geometry.Chain(e.GeometryID)
	if len(chain) >= 2 {
		return c.Coords[chain[len(chain)-2].Node]
	}
	return c.Coords[e.Source]
}

// pointAfter returns the first coordinate reached when leaving the
// source of an outbound edge.
func pointAfter(c *graph.Compressed, e *graph.NodeBasedEdge) geo.Coordinate {
	chain := c.Geometry.Chain(e.GeometryID)
	if len(chain) >= 1 {
		return c.Coords[chain[0].Node]
	}
	return c.Coords[e.Target]
}

// classify picks the turn instruction: roundabout transitions override
// the pure angle bins.
func classify(angle float64, e1, e2 *graph.NodeBasedEdge, isUTurn bool) graph.TurnInstruction {
	switch {
	case isUTurn:
		return graph.UTurn
	case e2.Roundabout && !e1.Roundabout:
		return graph.EnterRoundAbout
	case e2.Roundabout && e1.Roundabout:
		return graph.StayOnRoundAbout
	case e1.Roundabout && !e2.Roundabout:
		return graph.LeaveRoundAbout
	case e1.NameID == e2.NameID:
		// Continuing on the same road is silent unless it bends hard.
		d := graph.TurnDirection(angle)
		switch d {
		case graph.GoStraight, graph.TurnSlightLeft, graph.TurnSlightRight:
			return graph.NoTurn
		}
		return d
	default:
		return graph.TurnDirection(angle)
	}
}
