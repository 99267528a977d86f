package graph

import (
	"fmt"
	"sort"
)

// InvalidNode is the sentinel for "no node".
const InvalidNode = ^uint32(0)

// DisabledWeightDs marks a segment switched off by a zero-speed
// override. Large enough to dominate any real route, small enough that
// a path of up to 255 of them still fits in uint32. A route whose weight
// reaches this value is reported as unroutable.
const DisabledWeightDs = 1 << 24

// EdgeData is the payload of one query-graph edge.
type EdgeData struct {
	WeightDs   uint32
	DurationDs uint32
	DistanceDm uint32

	// Payload is the middle edge-based node for shortcuts, or the
	// annotation id of the original edge-based edge otherwise.
	Payload uint32

	Forward    bool
	Backward   bool
	IsShortcut bool
}

// QueryEdge is one CSR entry of the contracted query graph.
type QueryEdge struct {
	Target uint32
	Data   EdgeData
}

// QueryGraph is the immutable contracted graph the query engine runs on.
// Edges are sorted by (source, target); FirstOut is monotonic. Filters
// holds one bit vector per metric selecting the edges that metric may
// traverse; Core and Level describe the hierarchy.
type QueryGraph struct {
	NumNodes uint32
	FirstOut []uint32
	Edges    []QueryEdge

	Core  *BitVector // per node
	Level []uint32   // per node, contraction round

	FilterNames []string
	Filters     []*BitVector // per metric, per edge
}

// InputEdge pairs a source with its CSR entry during construction.
type InputEdge struct {
	Source uint32
	Target uint32
	Data   EdgeData
}

// BuildQueryGraph assembles the CSR arrays from an unsorted edge list.
// The sort is a total order so the layout is reproducible regardless of
// input order.
func BuildQueryGraph(numNodes uint32, input []InputEdge) *QueryGraph {
	sort.Slice(input, func(i, j int) bool {
		if input[i].Source != input[j].Source {
			return input[i].Source < input[j].Source
		}
		if input[i].Target != input[j].Target {
			return input[i].Target < input[j].Target
		}
		a, b := &input[i].Data, &input[j].Data
		if a.WeightDs != b.WeightDs {
			return a.WeightDs < b.WeightDs
		}
		if a.Forward != b.Forward {
			return a.Forward
		}
		if a.Backward != b.Backward {
			return a.Backward
		}
		if a.IsShortcut != b.IsShortcut {
			return !a.IsShortcut
		}
		return a.Payload < b.Payload
	})

	firstOut := make([]uint32, numNodes+1)
	for i := range input {
		firstOut[input[i].Source+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	edges := make([]QueryEdge, len(input))
	for i := range input {
		edges[i] = QueryEdge{Target: input[i].Target, Data: input[i].Data}
	}

	return &QueryGraph{
		NumNodes: numNodes,
		FirstOut: firstOut,
		Edges:    edges,
		Core:     NewBitVector(numNodes),
		Level:    make([]uint32, numNodes),
	}
}

// AdjacentEdges returns the edge index range for edges leaving u.
func (g *QueryGraph) AdjacentEdges(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// EdgeSource recovers the source node of an edge index by binary search
// over the offset array.
func (g *QueryGraph) EdgeSource(edge uint32) uint32 {
	lo, hi := uint32(0), g.NumNodes
	for lo < hi {
		mid := (lo + hi) / 2
		if g.FirstOut[mid+1] <= edge {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// FindSmallestEdge returns the index of the minimum-weight edge u -> v
// accepted by the filter, or InvalidNode.
func (g *QueryGraph) FindSmallestEdge(u, v uint32, accept func(EdgeData) bool) uint32 {
	best := InvalidNode
	bestWeight := ^uint32(0)
	start, end := g.AdjacentEdges(u)
	for e := start; e < end; e++ {
		if g.Edges[e].Target != v {
			continue
		}
		if !accept(g.Edges[e].Data) {
			continue
		}
		if g.Edges[e].Data.WeightDs < bestWeight {
			bestWeight = g.Edges[e].Data.WeightDs
			best = e
		}
	}
	return best
}

// UnpackEdge locates the minimum-weight edge realizing a travel from
// `from` to `to` in the given direction. The contractor stores each
// shortcut only in its upward orientation, so the edge may live at
// either endpoint: first the edges at `from` with the matching flag are
// scanned, then the edges at `to` pointing back with the opposite flag.
func (g *QueryGraph) UnpackEdge(from, to uint32, forward bool) (EdgeData, bool) {
	idx := g.FindSmallestEdge(from, to, func(d EdgeData) bool {
		if forward {
			return d.Forward
		}
		return d.Backward
	})
	if idx != InvalidNode {
		return g.Edges[idx].Data, true
	}
	idx = g.FindSmallestEdge(to, from, func(d EdgeData) bool {
		if forward {
			return d.Backward
		}
		return d.Forward
	})
	if idx != InvalidNode {
		return g.Edges[idx].Data, true
	}
	return EdgeData{}, false
}

// Filter returns the bit vector for a metric index, or nil when the
// graph carries a single unfiltered metric.
func (g *QueryGraph) Filter(metric int) *BitVector {
	if metric < 0 || metric >= len(g.Filters) {
		return nil
	}
	return g.Filters[metric]
}

// Validate checks the structural invariants: monotonic offsets, sorted
// targets within each node, in-range heads, and for every shortcut the
// presence of both halves with weights summing to the shortcut weight.
func (g *QueryGraph) Validate() error {
	if uint32(len(g.FirstOut)) != g.NumNodes+1 {
		return fmt.Errorf("query graph: offsets length %d, want %d", len(g.FirstOut), g.NumNodes+1)
	}
	if g.FirstOut[g.NumNodes] != uint32(len(g.Edges)) {
		return fmt.Errorf("query graph: offsets end %d, want %d edges", g.FirstOut[g.NumNodes], len(g.Edges))
	}
	for u := uint32(0); u < g.NumNodes; u++ {
		if g.FirstOut[u] > g.FirstOut[u+1] {
			return fmt.Errorf("query graph: offsets not monotonic at node %d", u)
		}
		start, end := g.AdjacentEdges(u)
		for e := start; e < end; e++ {
			if g.Edges[e].Target >= g.NumNodes {
				return fmt.Errorf("query graph: edge %d target %d out of range", e, g.Edges[e].Target)
			}
			if e > start && g.Edges[e].Target < g.Edges[e-1].Target {
				return fmt.Errorf("query graph: edges of node %d not sorted", u)
			}
		}
	}
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.AdjacentEdges(u)
		for e := start; e < end; e++ {
			data := g.Edges[e].Data
			if !data.IsShortcut {
				continue
			}
			forward := data.Forward
			mid := data.Payload
			first, ok1 := g.UnpackEdge(u, mid, forward)
			second, ok2 := g.UnpackEdge(mid, g.Edges[e].Target, forward)
			if !ok1 || !ok2 {
				return fmt.Errorf("query graph: shortcut %d->%d via %d has no expansion", u, g.Edges[e].Target, mid)
			}
			if sum := first.WeightDs + second.WeightDs; sum != data.WeightDs {
				return fmt.Errorf("query graph: shortcut %d->%d weight %d, halves sum %d",
					u, g.Edges[e].Target, data.WeightDs, sum)
			}
		}
	}
	return nil
}
