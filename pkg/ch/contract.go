package ch

// shortcut is a pending insertion produced by contracting one node.
type shortcut struct {
	from          uint32
	to            uint32
	weight        uint32
	duration      uint32
	distance      uint32
	originalEdges uint32
	middle        uint32
}

// contractNode computes the shortcuts required to remove v while
// preserving all shortest paths between its neighbors. In simulation
// mode the shortcuts are counted but not returned, which is all the
// priority function needs.
func contractNode(g *contractorGraph, ws *witnessState, v uint32, contracted []bool, simulate bool) (sc []shortcut, count int, origSum uint32) {
	adj := g.adj[v]

	for i := range adj {
		in := &adj[i]
		if !in.backward || contracted[in.target] || in.target == v {
			continue
		}
		u := in.target

		// One batch search per incoming neighbor covers every outgoing
		// target at once.
		var maxOut uint32
		for j := range adj {
			out := &adj[j]
			if !out.forward || contracted[out.target] || out.target == u || out.target == v {
				continue
			}
			if out.weight > maxOut {
				maxOut = out.weight
			}
		}
		if maxOut == 0 {
			continue
		}

		ws.search(g, u, v, in.weight+maxOut, witnessHopLimit, contracted)

		for j := range adj {
			out := &adj[j]
			if !out.forward || contracted[out.target] || out.target == u || out.target == v {
				continue
			}
			x := out.target
			target := in.weight + out.weight

			if ws.distance(x) <= target {
				continue // a witness path makes the shortcut redundant
			}

			count++
			origSum += in.originalEdges + out.originalEdges
			if !simulate {
				sc = append(sc, shortcut{
					from:          u,
					to:            x,
					weight:        target,
					duration:      in.duration + out.duration,
					distance:      in.distance + out.distance,
					originalEdges: in.originalEdges + out.originalEdges,
					middle:        v,
				})
			}
		}
	}
	return sc, count, origSum
}

// commitShortcuts inserts a contracted node's shortcuts, storing each at
// both endpoints with mirrored flags and merging parallel edges on
// minimum weight.
func commitShortcuts(g *contractorGraph, shortcuts []shortcut) {
	for _, s := range shortcuts {
		g.insertOrMerge(s.from, cEdge{
			target:        s.to,
			weight:        s.weight,
			duration:      s.duration,
			distance:      s.distance,
			originalEdges: s.originalEdges,
			payload:       s.middle,
			forward:       true,
			shortcut:      true,
		})
		g.insertOrMerge(s.to, cEdge{
			target:        s.from,
			weight:        s.weight,
			duration:      s.duration,
			distance:      s.distance,
			originalEdges: s.originalEdges,
			payload:       s.middle,
			backward:      true,
			shortcut:      true,
		})
	}
}

// priority estimates the cost of contracting v now: edge difference plus
// neighbour depth plus the originality of the hypothetical shortcuts,
// with unit weights. Lower contracts earlier.
func priority(g *contractorGraph, ws *witnessState, v uint32, contracted []bool, depth []uint32) float64 {
	_, count, origSum := contractNode(g, ws, v, contracted, true)

	incident := 0
	for i := range g.adj[v] {
		if !contracted[g.adj[v][i].target] && g.adj[v][i].target != v {
			incident++
		}
	}

	return float64(count-incident) + float64(depth[v]) + float64(origSum)
}
