package routing

import (
	"context"
	"math"

	"route_engine/pkg/graph"
	"route_engine/pkg/heap"
)

const invalidParent = graph.InvalidNode

// queryState is the per-worker search scratch: two addressable heaps
// whose key tables double as the distance arrays and whose payloads are
// the parent pointers. Clearing is a generation bump.
type queryState struct {
	fwd *heap.Heap[uint32]
	rev *heap.Heap[uint32]
}

func newQueryState(numNodes uint32) *queryState {
	return &queryState{
		fwd: heap.New[uint32](numNodes),
		rev: heap.New[uint32](numNodes),
	}
}

func (qs *queryState) clear() {
	qs.fwd.Clear()
	qs.rev.Clear()
}

// searchResult is the raw outcome of one bidirectional search.
type searchResult struct {
	weightDs uint32
	path     []uint32 // edge-based nodes in travel order
}

// search runs the bidirectional hierarchy search between two phantom
// points. The forward frontier tracks the cost to the END of each
// settled segment; the reverse frontier the cost from a segment's end to
// the target, biased by a constant so reverse keys stay non-negative.
// Meeting candidates with both parents still at their seeds are
// rejected, which forces a genuine loop when both phantoms share an
// edge in the wrong order.
func (e *Engine) search(ctx context.Context, qs *queryState, source, target PhantomPoint, filter *graph.BitVector) (searchResult, error) {
	qs.clear()

	nodes := e.dataset.Nodes

	// Forward seeds: remaining weight to the end of the seeded segment.
	if source.ForwardNode != graph.InvalidNode {
		w := nodes[source.ForwardNode].WeightDs
		qs.fwd.Insert(source.ForwardNode, saturatingSub(w, source.FwdOffsetDs), invalidParent)
	}
	if source.ReverseNode != graph.InvalidNode {
		w := nodes[source.ReverseNode].WeightDs
		qs.fwd.Insert(source.ReverseNode, saturatingSub(w, source.RevOffsetDs), invalidParent)
	}

	// Reverse seeds: offset minus the full segment weight, shifted into
	// non-negative territory by the bias.
	var bias uint32
	if target.ForwardNode != graph.InvalidNode {
		bias = nodes[target.ForwardNode].WeightDs
	}
	if target.ReverseNode != graph.InvalidNode {
		if w := nodes[target.ReverseNode].WeightDs; w > bias {
			bias = w
		}
	}
	if target.ForwardNode != graph.InvalidNode {
		w := nodes[target.ForwardNode].WeightDs
		qs.rev.Insert(target.ForwardNode, target.FwdOffsetDs+bias-w, invalidParent)
	}
	if target.ReverseNode != graph.InvalidNode {
		w := nodes[target.ReverseNode].WeightDs
		qs.rev.Insert(target.ReverseNode, target.RevOffsetDs+bias-w, invalidParent)
	}

	best := uint64(math.MaxUint64) // biased meeting weight
	meet := graph.InvalidNode

	iterations := 0
	for qs.fwd.Len() > 0 || qs.rev.Len() > 0 {
		if uint64(qs.fwd.MinKey())+uint64(qs.rev.MinKey()) >= best {
			break
		}

		// Deadline check on the first settle and every 256 thereafter.
		iterations++
		if iterations&255 == 1 && ctx.Err() != nil {
			return searchResult{}, ErrTimeout
		}

		if qs.fwd.Len() > 0 {
			e.settle(qs, filter, true, &best, &meet)
		}
		if qs.rev.Len() > 0 {
			e.settle(qs, filter, false, &best, &meet)
		}
	}

	if meet == graph.InvalidNode || best == math.MaxUint64 {
		return searchResult{}, ErrNoRoute
	}

	return searchResult{
		weightDs: uint32(best - uint64(bias)),
		path:     qs.assemblePath(meet),
	}, nil
}

// settle pops one node from the chosen frontier, checks the meeting
// condition, applies stall-on-demand outside the core, and relaxes the
// direction-matching edges.
func (e *Engine) settle(qs *queryState, filter *graph.BitVector, forward bool, best *uint64, meet *uint32) {
	qg := e.dataset.QueryGraph

	own, other := qs.fwd, qs.rev
	if !forward {
		own, other = qs.rev, qs.fwd
	}

	v, dist, _, ok := own.ExtractMin()
	if !ok {
		return
	}

	// Meeting check against the opposite frontier. A candidate where
	// both sides still sit on their seeds would be a zero-edge path;
	// the only valid such route is the within-edge case handled before
	// the search starts.
	if otherKey, inserted := other.Key(v); inserted {
		bothSeeds := *own.Data(v) == invalidParent && *other.Data(v) == invalidParent
		if !bothSeeds {
			if sum := uint64(dist) + uint64(otherKey); sum < *best {
				*best = sum
				*meet = v
			}
		}
	}

	// Stall-on-demand: a not-yet-relaxed downward edge proving a
	// shorter way to v suppresses its relaxation. Disabled in the core.
	if !qg.Core.Get(v) && e.stalled(own, filter, v, dist, forward) {
		return
	}

	start, end := qg.AdjacentEdges(v)
	for idx := start; idx < end; idx++ {
		if filter != nil && !filter.Get(idx) {
			continue
		}
		data := qg.Edges[idx].Data
		if forward && !data.Forward {
			continue
		}
		if !forward && !data.Backward {
			continue
		}
		t := qg.Edges[idx].Target
		newDist := dist + data.WeightDs

		if key, inserted := own.Key(t); !inserted {
			own.Insert(t, newDist, v)
		} else if newDist < key && !own.Removed(t) {
			own.DecreaseKey(t, newDist, v)
		}
	}
}

// stalled checks the opposite-direction edges at v for a shorter
// tentative distance.
func (e *Engine) stalled(own *heap.Heap[uint32], filter *graph.BitVector, v, dist uint32, forward bool) bool {
	qg := e.dataset.QueryGraph
	start, end := qg.AdjacentEdges(v)
	for idx := start; idx < end; idx++ {
		if filter != nil && !filter.Get(idx) {
			continue
		}
		data := qg.Edges[idx].Data
		if forward && !data.Backward {
			continue
		}
		if !forward && !data.Forward {
			continue
		}
		t := qg.Edges[idx].Target
		if key, inserted := own.Key(t); inserted {
			if key+data.WeightDs < dist {
				return true
			}
		}
	}
	return false
}

// assemblePath chains the parent pointers of both frontiers through the
// meeting node into travel order.
func (qs *queryState) assemblePath(meet uint32) []uint32 {
	var fwdPart []uint32
	node := meet
	for {
		fwdPart = append(fwdPart, node)
		parent := *qs.fwd.Data(node)
		if parent == invalidParent {
			break
		}
		node = parent
	}
	// Reverse into source -> meet order.
	for i, j := 0, len(fwdPart)-1; i < j; i, j = i+1, j-1 {
		fwdPart[i], fwdPart[j] = fwdPart[j], fwdPart[i]
	}

	node = meet
	for {
		parent := *qs.rev.Data(node)
		if parent == invalidParent {
			break
		}
		fwdPart = append(fwdPart, parent)
		node = parent
	}
	return fwdPart
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
