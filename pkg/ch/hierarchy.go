package ch

import (
	"github.com/rs/zerolog"

	"route_engine/pkg/graph"
)

// ExcludeFilter names a metric that forbids a class of edge-based nodes
// (avoid ferries, avoid restricted access). Each filter yields its own
// edge bit set over one merged query graph.
type ExcludeFilter struct {
	Name    string
	Allowed func(n graph.EdgeBasedNode) bool
}

// Contract runs a single-metric contraction.
func Contract(eb *graph.EdgeBased, cfg Config, logger zerolog.Logger) *graph.QueryGraph {
	return ContractExcludable(eb, cfg, nil, logger)
}

// edgeIdentity makes a collected edge comparable for cross-phase
// deduplication.
type edgeIdentity struct {
	source uint32
	target uint32
	data   graph.EdgeData
}

// ContractExcludable contracts the always-allowed intersection of all
// filters into a shared base, then finishes each filter's remainder from
// a clone of that base. The merged query graph tags every edge with the
// filters it serves.
func ContractExcludable(eb *graph.EdgeBased, cfg Config, filters []ExcludeFilter, logger zerolog.Logger) *graph.QueryGraph {
	n := uint32(len(eb.Nodes))
	base := buildContractorGraph(eb)
	coreTarget := int(cfg.CoreFactor * float64(n))

	var frozen []bool
	if len(filters) > 0 {
		frozen = make([]bool, n)
		for v := uint32(0); v < n; v++ {
			for _, f := range filters {
				if !f.Allowed(eb.Nodes[v]) {
					frozen[v] = true
					break
				}
			}
		}
	}

	shared := newContractionState(base, frozen)
	total := run(shared, cfg, coreTarget, logger)
	logger.Info().Uint32("contracted", shared.order).Int("shortcuts", total).Msg("shared phase complete")

	merged := make(map[edgeIdentity]uint32)
	level := make([]uint32, n)
	coreBits := graph.NewBitVector(n)

	if len(filters) == 0 {
		core := shared.finishCore()
		collectEdges(shared, core, nil, merged, 0)
		copy(level, shared.level)
		for v := uint32(0); v < n; v++ {
			if core[v] {
				coreBits.Set(v)
			}
		}
	} else {
		for i, f := range filters {
			nodeAllowed := make([]bool, n)
			for v := uint32(0); v < n; v++ {
				nodeAllowed[v] = f.Allowed(eb.Nodes[v])
			}

			st := shared.clone()
			for v := uint32(0); v < n; v++ {
				st.frozen[v] = !nodeAllowed[v]
			}
			phaseShortcuts := run(st, cfg, coreTarget, logger)
			core := st.finishCore()
			collectEdges(st, core, nodeAllowed, merged, uint(i))
			logger.Info().
				Str("filter", f.Name).
				Int("shortcuts", phaseShortcuts).
				Msg("filter phase complete")

			for v := uint32(0); v < n; v++ {
				if st.level[v] > level[v] {
					level[v] = st.level[v]
				}
				if core[v] && nodeAllowed[v] {
					coreBits.Set(v)
				}
			}
		}
	}

	// Flatten into the CSR query graph, then recover the per-edge filter
	// bits through the identity map.
	input := make([]graph.InputEdge, 0, len(merged))
	for id := range merged {
		input = append(input, graph.InputEdge{Source: id.source, Target: id.target, Data: id.data})
	}
	qg := graph.BuildQueryGraph(n, input)
	qg.Core = coreBits
	qg.Level = level

	if len(filters) > 0 {
		qg.FilterNames = make([]string, len(filters))
		qg.Filters = make([]*graph.BitVector, len(filters))
		for i, f := range filters {
			qg.FilterNames[i] = f.Name
			qg.Filters[i] = graph.NewBitVector(uint32(len(qg.Edges)))
		}
		for u := uint32(0); u < n; u++ {
			start, end := qg.AdjacentEdges(u)
			for e := start; e < end; e++ {
				mask := merged[edgeIdentity{source: u, target: qg.Edges[e].Target, data: qg.Edges[e].Data}]
				for i := range filters {
					if mask&(1<<uint(i)) != 0 {
						qg.Filters[i].Set(e)
					}
				}
			}
		}
	}

	logger.Info().
		Uint32("nodes", n).
		Int("edges", len(qg.Edges)).
		Uint32("core_nodes", coreBits.Count()).
		Msg("query graph assembled")

	return qg
}

// collectEdges walks the contracted adjacency and keeps the upward
// slice: entries pointing to strictly higher-ranked nodes, plus all
// entries between core nodes. nodeAllowed (when set) drops edges
// touching nodes the metric forbids.
func collectEdges(s *contractionState, core []bool, nodeAllowed []bool, merged map[edgeIdentity]uint32, bit uint) {
	for u := uint32(0); u < s.g.numNodes(); u++ {
		if nodeAllowed != nil && !nodeAllowed[u] {
			continue
		}
		for i := range s.g.adj[u] {
			e := &s.g.adj[u][i]
			t := e.target
			if nodeAllowed != nil && !nodeAllowed[t] {
				continue
			}
			if !(core[u] && core[t]) && s.rank[t] <= s.rank[u] {
				continue
			}
			id := edgeIdentity{
				source: u,
				target: t,
				data: graph.EdgeData{
					WeightDs:   e.weight,
					DurationDs: e.duration,
					DistanceDm: e.distance,
					Payload:    e.payload,
					Forward:    e.forward,
					Backward:   e.backward,
					IsShortcut: e.shortcut,
				},
			}
			merged[id] |= 1 << bit
		}
	}
}
