package routing

import (
	"math"

	"github.com/tidwall/rtree"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
)

// defaultSnapRadiusM bounds how far a query coordinate may sit from the
// nearest road.
const defaultSnapRadiusM = 300.0

// BearingFilter restricts snapping to segments pointing roughly the
// requested way.
type BearingFilter struct {
	Bearing   float64
	Tolerance float64
}

// SnapOptions tune one nearest-edge lookup.
type SnapOptions struct {
	RadiusM float64
	Bearing *BearingFilter
}

// leaf is one geometry segment in the spatial index, carrying both
// travel directions of its road.
type leaf struct {
	fwdNode uint32
	revNode uint32
	fwdSeg  uint32
	revSeg  uint32
	a       geo.Coordinate // chain-order endpoints
	b       geo.Coordinate
}

// Snapper locates the nearest edge-based edge for a coordinate using an
// r-tree over geometry segments.
type Snapper struct {
	tr       rtree.RTreeG[leaf]
	nodes    []graph.EdgeBasedNode
	geometry *graph.Geometry
	coords   []geo.Coordinate
}

// NewSnapper indexes every geometry segment. Bidirectional roads yield
// one leaf shared by both directed nodes.
func NewSnapper(nodes []graph.EdgeBasedNode, geometry *graph.Geometry, coords []geo.Coordinate) *Snapper {
	s := &Snapper{nodes: nodes, geometry: geometry, coords: coords}

	// Pair each directed node with its opposite. Parallel roads between
	// the same endpoints are disambiguated by their mirrored chains.
	byEndpoints := make(map[[2]uint32][]uint32, len(nodes))
	for i := range nodes {
		key := [2]uint32{nodes[i].NBSource, nodes[i].NBTarget}
		byEndpoints[key] = append(byEndpoints[key], uint32(i))
	}
	reverseOf := func(i uint32) uint32 {
		node := &nodes[i]
		for _, cand := range byEndpoints[[2]uint32{node.NBTarget, node.NBSource}] {
			if chainsMirror(geometry, node.GeometryID, nodes[cand].GeometryID, node.NBSource) {
				return cand
			}
		}
		return graph.InvalidNode
	}

	for i := range nodes {
		node := &nodes[i]
		rev := reverseOf(uint32(i))
		if rev != graph.InvalidNode && rev < uint32(i) {
			continue // already indexed from the opposite side
		}

		chain := geometry.Chain(node.GeometryID)
		prev := coords[node.NBSource]
		for segIdx := range chain {
			cur := coords[chain[segIdx].Node]
			lf := leaf{
				fwdNode: uint32(i),
				revNode: rev,
				fwdSeg:  uint32(segIdx),
				revSeg:  uint32(len(chain) - 1 - segIdx),
				a:       prev,
				b:       cur,
			}
			minP := [2]float64{math.Min(prev.LonF(), cur.LonF()), math.Min(prev.LatF(), cur.LatF())}
			maxP := [2]float64{math.Max(prev.LonF(), cur.LonF()), math.Max(prev.LatF(), cur.LatF())}
			s.tr.Insert(minP, maxP, lf)
			prev = cur
		}
	}
	return s
}

// chainsMirror reports whether the reverse chain retraces the forward
// chain: same segment count, interior nodes in opposite order, ending at
// the forward chain's source.
func chainsMirror(geometry *graph.Geometry, fwdID, revID uint32, fwdSource uint32) bool {
	fwd := geometry.Chain(fwdID)
	rev := geometry.Chain(revID)
	if len(fwd) != len(rev) {
		return false
	}
	n := len(fwd)
	if rev[n-1].Node != fwdSource {
		return false
	}
	for i := 0; i < n-1; i++ {
		if rev[i].Node != fwd[n-2-i].Node {
			return false
		}
	}
	return true
}

// candidate is one scored leaf during a snap.
type candidate struct {
	lf    leaf
	dist  float64
	ratio float64
	ok    bool
}

// Snap projects the coordinate onto the nearest acceptable segment.
// Large components win over small ones so a coastal query does not snap
// across the water; a bearing filter can disable one or both directions
// of a leaf.
func (s *Snapper) Snap(lat, lon float64, opts SnapOptions) (PhantomPoint, error) {
	radius := opts.RadiusM
	if radius <= 0 {
		radius = defaultSnapRadiusM
	}

	// Conservative degree bound: one degree is at least this many
	// meters in either axis at the query latitude.
	metersPerDegree := 111_320 * math.Cos(lat*math.Pi/180)
	if metersPerDegree < 1 {
		metersPerDegree = 1
	}
	cutoffDeg := radius / metersPerDegree * 2

	var best, bestSmall candidate
	best.dist = math.Inf(1)
	bestSmall.dist = math.Inf(1)

	point := [2]float64{lon, lat}
	s.tr.Nearby(
		rtree.BoxDist[float64, leaf](point, point, nil),
		func(_, _ [2]float64, lf leaf, boxDist float64) bool {
			if boxDist > cutoffDeg {
				return false
			}

			dist, ratio := geo.PointToSegmentDist(
				lat, lon,
				lf.a.LatF(), lf.a.LonF(),
				lf.b.LatF(), lf.b.LonF(),
			)
			if dist > radius {
				return true
			}
			if opts.Bearing != nil && !s.bearingMatches(&lf, opts.Bearing) {
				return true
			}

			cand := candidate{lf: lf, dist: dist, ratio: ratio, ok: true}
			small := s.nodes[lf.fwdNode].SmallComponent
			if small {
				if dist < bestSmall.dist {
					bestSmall = cand
				}
			} else if dist < best.dist {
				best = cand
			}
			return true
		},
	)

	chosen := best
	if !chosen.ok {
		chosen = bestSmall
	}
	if !chosen.ok {
		return PhantomPoint{}, ErrNoSegment
	}

	return s.phantomFor(chosen, opts.Bearing), nil
}

// bearingMatches checks the segment's travel bearings against the
// filter; the leaf survives if either direction fits.
func (s *Snapper) bearingMatches(lf *leaf, bf *BearingFilter) bool {
	fwdBearing := geo.Bearing(lf.a.LatF(), lf.a.LonF(), lf.b.LatF(), lf.b.LonF())
	if geo.BearingWithinRange(fwdBearing, bf.Bearing, bf.Tolerance) {
		return true
	}
	if lf.revNode == graph.InvalidNode {
		return false
	}
	return geo.BearingWithinRange(math.Mod(fwdBearing+180, 360), bf.Bearing, bf.Tolerance)
}

// phantomFor computes weight and distance offsets for both directions
// of the chosen segment.
func (s *Snapper) phantomFor(c candidate, bf *BearingFilter) PhantomPoint {
	node := &s.nodes[c.lf.fwdNode]

	p := PhantomPoint{
		ForwardNode:    c.lf.fwdNode,
		ReverseNode:    c.lf.revNode,
		NameID:         node.NameID,
		ComponentID:    node.ComponentID,
		SmallComponent: node.SmallComponent,
	}

	snapLat := c.lf.a.LatF() + c.ratio*(c.lf.b.LatF()-c.lf.a.LatF())
	snapLon := c.lf.a.LonF() + c.ratio*(c.lf.b.LonF()-c.lf.a.LonF())
	p.Location = geo.MakeCoordinate(snapLat, snapLon)

	chain := s.geometry.Chain(node.GeometryID)
	for i := uint32(0); i < c.lf.fwdSeg; i++ {
		p.FwdOffsetDs += chain[i].FwdWeightDs
		p.FwdOffsetDm += chain[i].DistanceDm
	}
	p.FwdOffsetDs += uint32(math.Round(c.ratio * float64(chain[c.lf.fwdSeg].FwdWeightDs)))
	p.FwdOffsetDm += uint32(math.Round(c.ratio * float64(chain[c.lf.fwdSeg].DistanceDm)))

	if c.lf.revNode != graph.InvalidNode {
		revChain := s.geometry.Chain(s.nodes[c.lf.revNode].GeometryID)
		for i := uint32(0); i < c.lf.revSeg; i++ {
			p.RevOffsetDs += revChain[i].FwdWeightDs
			p.RevOffsetDm += revChain[i].DistanceDm
		}
		p.RevOffsetDs += uint32(math.Round((1 - c.ratio) * float64(revChain[c.lf.revSeg].FwdWeightDs)))
		p.RevOffsetDm += uint32(math.Round((1 - c.ratio) * float64(revChain[c.lf.revSeg].DistanceDm)))
	}

	// A one-sided bearing filter disables the non-matching direction.
	if bf != nil {
		fwdBearing := geo.Bearing(c.lf.a.LatF(), c.lf.a.LonF(), c.lf.b.LatF(), c.lf.b.LonF())
		if !geo.BearingWithinRange(fwdBearing, bf.Bearing, bf.Tolerance) {
			p.ForwardNode = graph.InvalidNode
		}
		if p.ReverseNode != graph.InvalidNode &&
			!geo.BearingWithinRange(math.Mod(fwdBearing+180, 360), bf.Bearing, bf.Tolerance) {
			p.ReverseNode = graph.InvalidNode
		}
	}

	return p
}
