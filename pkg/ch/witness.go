package ch

import (
	"route_engine/pkg/heap"
)

const (
	// witnessHopLimit bounds search depth during contraction. Finding
	// fewer witnesses only means extra shortcuts, never wrong distances.
	witnessHopLimit = 5

	// witnessSettleLimit caps the nodes settled per search.
	witnessSettleLimit = 500

	maxWeight = ^uint32(0)
)

type witnessData struct {
	hops int
}

// witnessState is the per-worker reusable search state. Clearing is a
// generation bump on the heap.
type witnessState struct {
	heap *heap.Heap[witnessData]
}

func newWitnessState(numNodes uint32) *witnessState {
	return &witnessState{heap: heap.New[witnessData](numNodes)}
}

// search runs a forbidden-node Dijkstra from source, excluding the node
// being contracted, bounded by weight and hop limits. Distances are left
// in the heap's key table for the caller to read; unsettled keys are
// upper bounds, which can only cause a redundant shortcut, never a
// missing one.
func (ws *witnessState) search(g *contractorGraph, source, forbidden, weightLimit uint32, hopLimit int, contracted []bool) {
	h := ws.heap
	h.Clear()
	h.Insert(source, 0, witnessData{hops: 0})

	settled := 0
	for h.Len() > 0 {
		node, dist, data, ok := h.ExtractMin()
		if !ok {
			break
		}

		settled++
		if settled >= witnessSettleLimit {
			return
		}
		if dist > weightLimit {
			continue
		}
		if data.hops >= hopLimit {
			continue
		}

		for i := range g.adj[node] {
			e := &g.adj[node][i]
			if !e.forward || e.target == forbidden || contracted[e.target] {
				continue
			}
			newDist := dist + e.weight
			if newDist > weightLimit {
				continue
			}
			if key, inserted := h.Key(e.target); !inserted {
				h.Insert(e.target, newDist, witnessData{hops: data.hops + 1})
			} else if newDist < key && !h.Removed(e.target) {
				h.DecreaseKey(e.target, newDist, witnessData{hops: data.hops + 1})
			}
		}
	}
}

// distance reads the best distance found for a node, or maxWeight.
func (ws *witnessState) distance(node uint32) uint32 {
	if key, ok := ws.heap.Key(node); ok {
		return key
	}
	return maxWeight
}
