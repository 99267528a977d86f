// Package ch implements contraction hierarchies preprocessing over the
// edge-based graph: witness searches decide which shortcuts preserve
// shortest paths, an independent-set scheduler contracts nodes in
// parallel rounds, and the result is flattened into the immutable query
// graph.
package ch

import (
	"route_engine/pkg/graph"
)

// cEdge is one adjacency entry of the mutable contractor graph. Every
// logical edge is stored at both endpoints with mirrored direction
// flags.
type cEdge struct {
	target        uint32
	weight        uint32
	duration      uint32
	distance      uint32
	originalEdges uint32
	payload       uint32 // middle node for shortcuts, annotation id otherwise
	forward       bool
	backward      bool
	shortcut      bool
}

// contractorGraph is the scheduler-owned mutable adjacency. It is
// read-only during parallel rounds and mutated only in the serial
// commit step.
type contractorGraph struct {
	adj [][]cEdge
}

func buildContractorGraph(eb *graph.EdgeBased) *contractorGraph {
	g := &contractorGraph{adj: make([][]cEdge, len(eb.Nodes))}
	for _, e := range eb.Edges {
		g.insert(e.Source, cEdge{
			target:        e.Target,
			weight:        e.WeightDs,
			duration:      e.DurationDs,
			distance:      e.DistanceDm,
			originalEdges: 1,
			payload:       e.AnnotationID,
			forward:       true,
		})
		g.insert(e.Target, cEdge{
			target:        e.Source,
			weight:        e.WeightDs,
			duration:      e.DurationDs,
			distance:      e.DistanceDm,
			originalEdges: 1,
			payload:       e.AnnotationID,
			backward:      true,
		})
	}
	return g
}

func (g *contractorGraph) insert(node uint32, e cEdge) {
	g.adj[node] = append(g.adj[node], e)
}

// insertOrMerge keeps at most one edge per (target, orientation),
// preferring the smaller weight.
func (g *contractorGraph) insertOrMerge(node uint32, e cEdge) {
	for i := range g.adj[node] {
		ex := &g.adj[node][i]
		if ex.target == e.target && ex.forward == e.forward && ex.backward == e.backward {
			if e.weight < ex.weight {
				*ex = e
			}
			return
		}
	}
	g.insert(node, e)
}

func (g *contractorGraph) clone() *contractorGraph {
	out := &contractorGraph{adj: make([][]cEdge, len(g.adj))}
	for i := range g.adj {
		out.adj[i] = append([]cEdge(nil), g.adj[i]...)
	}
	return out
}

func (g *contractorGraph) numNodes() uint32 { return uint32(len(g.adj)) }
