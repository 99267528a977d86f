package traffic

import (
	"math"

	"github.com/rs/zerolog"

	"route_engine/pkg/graph"
)

// weightChangeLogFactor triggers a log line when an override moves a
// segment weight by more than this ratio in either direction.
const weightChangeLogFactor = 2.0

// Apply rewrites geometry segment weights from the speed overrides,
// recomputes the affected edge-based node and edge weights, and replaces
// turn penalties mentioned in the penalty files. externalIDs maps
// internal node-based ids to source-dataset ids.
func Apply(eb *graph.EdgeBased, externalIDs []int64, o *Overrides, logger zerolog.Logger) {
	if len(o.Speeds) == 0 && len(o.Penalties) == 0 {
		return
	}

	oldNodeWeight := make([]uint32, len(eb.Nodes))
	for i := range eb.Nodes {
		oldNodeWeight[i] = eb.Nodes[i].WeightDs
	}

	segmentsChanged := 0
	for i := range eb.Nodes {
		node := &eb.Nodes[i]
		chain := eb.Geometry.Chain(node.GeometryID)
		prev := node.NBSource
		changed := false

		for s := range chain {
			seg := &chain[s]
			fwdKey := [2]int64{externalIDs[prev], externalIDs[seg.Node]}
			if entry, ok := o.Speeds[fwdKey]; ok {
				newWeight := overrideWeight(seg.DistanceDm, entry.SpeedKmh)
				logLargeChange(logger, fwdKey, seg.FwdWeightDs, newWeight)
				seg.FwdWeightDs = newWeight
				seg.FwdSource = entry.Source
				changed = true
				segmentsChanged++
			}
			revKey := [2]int64{externalIDs[seg.Node], externalIDs[prev]}
			if entry, ok := o.Speeds[revKey]; ok {
				seg.RevWeightDs = overrideWeight(seg.DistanceDm, entry.SpeedKmh)
				seg.RevSource = entry.Source
			}
			prev = seg.Node
		}

		if changed {
			node.WeightDs = eb.Geometry.SumForward(node.GeometryID)
			node.DurationDs = node.WeightDs
		}
	}

	// Shift edge weights by the delta of their target segment, keeping
	// the turn-penalty share intact; turn overrides then replace that
	// share outright.
	turnsChanged := 0
	for i := range eb.Edges {
		e := &eb.Edges[i]
		target := &eb.Nodes[e.Target]

		newWeight := int64(e.WeightDs) + int64(target.WeightDs) - int64(oldNodeWeight[e.Target])

		if len(o.Penalties) > 0 {
			if key, ok := turnKey(eb, externalIDs, e); ok {
				if entry, ok := o.Penalties[key]; ok {
					newWeight = int64(target.WeightDs) + int64(entry.PenaltyDs)
					turnsChanged++
				}
			}
		}

		if newWeight < 1 {
			newWeight = 1
		}
		if newWeight > math.MaxUint32 {
			newWeight = math.MaxUint32
		}
		e.WeightDs = uint32(newWeight)
		e.DurationDs = e.WeightDs
	}

	logger.Info().
		Int("segments", segmentsChanged).
		Int("turns", turnsChanged).
		Msg("traffic overrides applied")
}

// turnKey recovers the (from, via, to) external node triple of an
// edge-based edge. from and to are the nodes immediately adjacent to the
// junction, which may be chain interiors.
func turnKey(eb *graph.EdgeBased, externalIDs []int64, e *graph.EdgeBasedEdge) ([3]int64, bool) {
	in := &eb.Nodes[e.Source]
	out := &eb.Nodes[e.Target]

	via := in.NBTarget

	from := in.NBSource
	if chain := eb.Geometry.Chain(in.GeometryID); len(chain) >= 2 {
		from = chain[len(chain)-2].Node
	}

	outChain := eb.Geometry.Chain(out.GeometryID)
	if len(outChain) == 0 {
		return [3]int64{}, false
	}
	to := outChain[0].Node

	return [3]int64{externalIDs[from], externalIDs[via], externalIDs[to]}, true
}

func overrideWeight(distanceDm uint32, speedKmh float64) uint32 {
	if speedKmh <= 0 {
		return DisabledWeightDs
	}
	ds := math.Round(float64(distanceDm) * 3.6 / speedKmh)
	if ds < 1 {
		ds = 1
	}
	return uint32(ds)
}

func logLargeChange(logger zerolog.Logger, key [2]int64, oldW, newW uint32) {
	if oldW == 0 {
		return
	}
	ratio := float64(newW) / float64(oldW)
	if ratio > weightChangeLogFactor || ratio < 1/weightChangeLogFactor {
		logger.Warn().
			Int64("from", key[0]).
			Int64("to", key[1]).
			Uint32("old_ds", oldW).
			Uint32("new_ds", newW).
			Msg("override changes segment weight sharply")
	}
}
