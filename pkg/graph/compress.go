package graph

// Chain compression collapses runs of degree-2 nodes into single edges
// carrying an explicit geometry, shrinking the node count fed into edge
// expansion by roughly an order of magnitude on street networks.

type compressEdge struct {
	NodeBasedEdge
	segments []GeometrySegment
	dead     bool
}

// Compressed is the node-based graph after chain compression, with the
// geometry container recording what was collapsed. Every surviving edge
// owns a chain, trivial edges included; the chain id travels on the edge
// itself so re-sorting cannot detach it.
type Compressed struct {
	*NodeBased
	Geometry *Geometry
}

// Compress collapses every compressible chain in g. A node is
// compressible when each travel direction passes straight through it,
// the two incident edges agree on name, class, mode, access restriction
// and roundabout membership, there are no parallel edges at the node,
// and the node is neither a barrier nor a traffic signal.
func Compress(g *NodeBased) *Compressed {
	edges := make([]compressEdge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = compressEdge{NodeBasedEdge: e}
	}

	// Mutable adjacency over edge indices.
	out := make([][]int32, g.NumNodes)
	in := make([][]int32, g.NumNodes)
	for i := range edges {
		out[edges[i].Source] = append(out[edges[i].Source], int32(i))
		in[edges[i].Target] = append(in[edges[i].Target], int32(i))
	}

	// Seed one segment per edge. The reverse weight mirrors the paired
	// opposite edge so later per-direction overrides stay independent.
	for i := range edges {
		rev := edges[i].WeightDs
		if r := g.FindEdge(edges[i].Target, edges[i].Source); r != ^uint32(0) {
			rev = g.Edges[r].WeightDs
		}
		edges[i].segments = []GeometrySegment{{
			Node:        edges[i].Target,
			FwdWeightDs: edges[i].WeightDs,
			RevWeightDs: rev,
			DistanceDm:  edges[i].DistanceDm,
		}}
	}

	findAlive := func(list []int32, match func(e *compressEdge) bool) int32 {
		found := int32(-1)
		for _, idx := range list {
			if edges[idx].dead {
				continue
			}
			if match(&edges[idx]) {
				if found >= 0 {
					return -2 // parallel edge, disqualifies
				}
				found = idx
			}
		}
		return found
	}

	replaceRef := func(list []int32, from, to int32) {
		for i, idx := range list {
			if idx == from {
				list[i] = to
				return
			}
		}
	}

	// merge appends b onto a, retargets a, and drops b.
	merge := func(a, b int32) {
		ea, eb := &edges[a], &edges[b]
		ea.WeightDs += eb.WeightDs
		ea.DistanceDm += eb.DistanceDm
		ea.segments = append(ea.segments, eb.segments...)
		ea.Target = eb.Target
		eb.dead = true
		replaceRef(in[eb.Target], b, a)
		removeRef(&out[eb.Source], b)
	}

	for v := uint32(0); v < g.NumNodes; v++ {
		if g.Barrier[v] || g.Signal[v] {
			continue
		}

		// Collect the distinct live neighbors of v.
		neighbors := make(map[uint32]struct{}, 2)
		for _, idx := range out[v] {
			if !edges[idx].dead {
				neighbors[edges[idx].Target] = struct{}{}
			}
		}
		for _, idx := range in[v] {
			if !edges[idx].dead {
				neighbors[edges[idx].Source] = struct{}{}
			}
		}
		if len(neighbors) != 2 {
			continue
		}
		pair := make([]uint32, 0, 2)
		for n := range neighbors {
			pair = append(pair, n)
		}
		u, w := pair[0], pair[1]
		if u == v || w == v {
			continue // self loop
		}

		uv := findAlive(in[v], func(e *compressEdge) bool { return e.Source == u })
		vw := findAlive(out[v], func(e *compressEdge) bool { return e.Target == w })
		wv := findAlive(in[v], func(e *compressEdge) bool { return e.Source == w })
		vu := findAlive(out[v], func(e *compressEdge) bool { return e.Target == u })
		if uv == -2 || vw == -2 || wv == -2 || vu == -2 {
			continue // parallel ways stay separate
		}

		// Each inbound direction must continue outbound on the far side.
		if (uv >= 0) != (vw >= 0) || (wv >= 0) != (vu >= 0) {
			continue
		}
		if uv < 0 && wv < 0 {
			continue
		}

		if uv >= 0 && !compatible(&edges[uv].NodeBasedEdge, &edges[vw].NodeBasedEdge) {
			continue
		}
		if wv >= 0 && !compatible(&edges[wv].NodeBasedEdge, &edges[vu].NodeBasedEdge) {
			continue
		}

		if uv >= 0 {
			merge(uv, vw)
		}
		if wv >= 0 {
			merge(wv, vu)
		}
	}

	// Assemble the surviving edge list plus its geometry chains.
	geometry := NewGeometry()
	var outEdges []NodeBasedEdge
	for i := range edges {
		if edges[i].dead {
			continue
		}
		e := edges[i].NodeBasedEdge
		e.GeometryID = geometry.Add(edges[i].segments)
		outEdges = append(outEdges, e)
	}

	compact := BuildNodeBased(
		g.NumNodes, g.Coords, g.ExternalIDs, outEdges,
		g.Barrier, g.Signal, g.Restrictions, g.Names,
	)

	return &Compressed{NodeBased: compact, Geometry: geometry}
}

func compatible(a, b *NodeBasedEdge) bool {
	return a.NameID == b.NameID &&
		a.Class == b.Class &&
		a.Mode == b.Mode &&
		a.AccessRestricted == b.AccessRestricted &&
		a.Roundabout == b.Roundabout
}

func removeRef(list *[]int32, idx int32) {
	for i, v := range *list {
		if v == idx {
			(*list)[i] = (*list)[len(*list)-1]
			*list = (*list)[:len(*list)-1]
			return
		}
	}
}
