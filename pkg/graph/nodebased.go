package graph

import (
	"sort"

	"route_engine/pkg/geo"
	"route_engine/pkg/profile"
)

// NodeBasedEdge is one directed road segment between two junction nodes.
type NodeBasedEdge struct {
	Source     uint32
	Target     uint32
	WeightDs   uint32 // travel time in deci-seconds
	DistanceDm uint32 // length in decimeters
	NameID     uint32
	LanesID    uint32
	GeometryID uint32 // chain id after compression; zero before
	Class      profile.RoadClass
	Mode       profile.TravelMode

	AccessRestricted bool
	Roundabout       bool
	ContraFlow       bool
}

// Restriction is a via-node turn restriction resolved to internal ids.
type Restriction struct {
	From uint32 // node entered from
	Via  uint32
	To   uint32
	Only bool // true: the listed turn is the single permitted one
}

// NodeBased is the directed node-based street graph produced by
// extraction. It lives only during preprocessing.
type NodeBased struct {
	NumNodes uint32

	Coords      []geo.Coordinate
	ExternalIDs []int64 // source-dataset node ids, internal-id order

	FirstOut []uint32
	Edges    []NodeBasedEdge

	Barrier []bool
	Signal  []bool

	Restrictions []Restriction

	Names *StringTable
}

// BuildNodeBased assembles the CSR node-based graph from an edge list.
// Edges are sorted by (source, target); FirstOut is built by counting.
func BuildNodeBased(
	numNodes uint32,
	coords []geo.Coordinate,
	externalIDs []int64,
	edges []NodeBasedEdge,
	barrier, signal []bool,
	restrictions []Restriction,
	names *StringTable,
) *NodeBased {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	firstOut := make([]uint32, numNodes+1)
	for i := range edges {
		firstOut[edges[i].Source+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	if barrier == nil {
		barrier = make([]bool, numNodes)
	}
	if signal == nil {
		signal = make([]bool, numNodes)
	}
	if names == nil {
		names = NewStringTable()
	}

	return &NodeBased{
		NumNodes:     numNodes,
		Coords:       coords,
		ExternalIDs:  externalIDs,
		FirstOut:     firstOut,
		Edges:        edges,
		Barrier:      barrier,
		Signal:       signal,
		Restrictions: restrictions,
		Names:        names,
	}
}

// EdgesFrom returns the edge index range for edges leaving node u.
func (g *NodeBased) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// FindEdge returns the index of the first edge u -> v, or ^uint32(0).
func (g *NodeBased) FindEdge(u, v uint32) uint32 {
	start, end := g.EdgesFrom(u)
	for e := start; e < end; e++ {
		if g.Edges[e].Target == v {
			return e
		}
	}
	return ^uint32(0)
}
