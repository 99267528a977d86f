package routing

import (
	"fmt"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
)

// PathData is one annotated point of the unpacked route. DurationDs and
// DistanceDm cover the stretch from the previous point to this one.
type PathData struct {
	Location    geo.Coordinate
	NameID      uint32
	Instruction graph.TurnInstruction
	DurationDs  uint32
	DistanceDm  uint32
	Mode        profile.TravelMode
}

// expandedStep is a terminal (non-shortcut) move onto one edge-based
// node, with the annotation recorded at expansion time.
type expandedStep struct {
	node       uint32
	annotation uint32
}

// expandShortcuts turns the packed node path into original edge-based
// moves. A depth-first stack replaces recursion; shortcut halves are
// located through the query graph's direction-aware edge lookup. A
// missing half is a preprocessing bug.
func (e *Engine) expandShortcuts(path []uint32) ([]expandedStep, error) {
	qg := e.dataset.QueryGraph
	var steps []expandedStep

	type frame struct{ from, to uint32 }
	var stack []frame

	for i := len(path) - 1; i > 0; i-- {
		stack = append(stack, frame{path[i-1], path[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		data, ok := qg.UnpackEdge(f.from, f.to, true)
		if !ok {
			return nil, fmt.Errorf("%w: no edge %d -> %d", ErrInternalInvariant, f.from, f.to)
		}

		if data.IsShortcut {
			mid := data.Payload
			stack = append(stack, frame{mid, f.to})
			stack = append(stack, frame{f.from, mid})
			continue
		}

		steps = append(steps, expandedStep{node: f.to, annotation: data.Payload})
	}

	return steps, nil
}

// legPath assembles the annotated point stream for one leg: the partial
// first segment from the source phantom, full chains for intermediate
// steps with turn instructions at their boundaries, and the partial last
// segment up to the target phantom.
func (e *Engine) legPath(source, target PhantomPoint, path []uint32) ([]PathData, error) {
	steps, err := e.expandShortcuts(path)
	if err != nil {
		return nil, err
	}

	first := path[0]
	firstNode := &e.dataset.Nodes[first]

	out := []PathData{{
		Location:    source.Location,
		NameID:      firstNode.NameID,
		Instruction: graph.HeadOn,
		Mode:        firstNode.Mode,
	}}

	srcOffDs, srcOffDm := phantomOffsets(source, first)
	out = e.appendChainFrom(out, first, srcOffDs, srcOffDm)

	last := path[len(path)-1]
	for i, step := range steps {
		ann := e.dataset.Annotations[step.annotation]
		if i == len(steps)-1 {
			// Final step: trim at the target phantom.
			tgtOffDs, tgtOffDm := phantomOffsets(target, last)
			if tgtOffDs == 0 && tgtOffDm == 0 && len(out) > 1 {
				// The target sits at the start of the final node, where the
				// previous stretch already ended: close on that point.
				out[len(out)-1].Location = target.Location
				return out, nil
			}
			out = e.appendChainUntil(out, step.node, ann.Instruction, tgtOffDs, tgtOffDm, target.Location)
			return out, nil
		}
		out = e.appendChain(out, step.node, ann.Instruction)
	}
	return out, nil
}

// appendChain emits every segment of a node's geometry chain; the first
// point carries the turn instruction of the step boundary.
func (e *Engine) appendChain(out []PathData, node uint32, instruction graph.TurnInstruction) []PathData {
	n := &e.dataset.Nodes[node]
	chain := e.dataset.Geometry.Chain(n.GeometryID)
	for i, seg := range chain {
		ins := graph.NoTurn
		if i == 0 {
			ins = instruction
		}
		out = append(out, PathData{
			Location:    e.dataset.Coords[seg.Node],
			NameID:      n.NameID,
			Instruction: ins,
			DurationDs:  seg.FwdWeightDs,
			DistanceDm:  seg.DistanceDm,
			Mode:        n.Mode,
		})
	}
	return out
}

// appendChainFrom emits the remainder of a chain after the given
// offsets: the phantom's own segment becomes a partial stretch.
func (e *Engine) appendChainFrom(out []PathData, node uint32, offDs, offDm uint32) []PathData {
	n := &e.dataset.Nodes[node]
	chain := e.dataset.Geometry.Chain(n.GeometryID)

	var cumDs, cumDm uint32
	for _, seg := range chain {
		endDs := cumDs + seg.FwdWeightDs
		endDm := cumDm + seg.DistanceDm
		if endDm > offDm || endDs > offDs {
			out = append(out, PathData{
				Location:    e.dataset.Coords[seg.Node],
				NameID:      n.NameID,
				Instruction: graph.NoTurn,
				DurationDs:  saturatingSub(endDs, maxU32(cumDs, offDs)),
				DistanceDm:  saturatingSub(endDm, maxU32(cumDm, offDm)),
				Mode:        n.Mode,
			})
		}
		cumDs, cumDm = endDs, endDm
	}
	return out
}

// appendChainUntil emits a chain up to the target offsets and closes
// with the snapped location.
func (e *Engine) appendChainUntil(out []PathData, node uint32, instruction graph.TurnInstruction, offDs, offDm uint32, location geo.Coordinate) []PathData {
	n := &e.dataset.Nodes[node]
	chain := e.dataset.Geometry.Chain(n.GeometryID)

	var cumDs, cumDm uint32
	ins := instruction
	for _, seg := range chain {
		endDs := cumDs + seg.FwdWeightDs
		endDm := cumDm + seg.DistanceDm
		if endDm >= offDm {
			break
		}
		out = append(out, PathData{
			Location:    e.dataset.Coords[seg.Node],
			NameID:      n.NameID,
			Instruction: ins,
			DurationDs:  seg.FwdWeightDs,
			DistanceDm:  seg.DistanceDm,
			Mode:        n.Mode,
		})
		ins = graph.NoTurn
		cumDs, cumDm = endDs, endDm
	}

	out = append(out, PathData{
		Location:    location,
		NameID:      n.NameID,
		Instruction: ins,
		DurationDs:  saturatingSub(offDs, cumDs),
		DistanceDm:  saturatingSub(offDm, cumDm),
		Mode:        n.Mode,
	})
	return out
}

// directPath emits the sub-segment of a single edge-based node between
// two offsets, for queries whose phantoms share an edge in travel
// order. No shortcut expansion is involved.
func (e *Engine) directPath(node uint32, srcDs, srcDm, tgtDs, tgtDm uint32, from, to geo.Coordinate, first graph.TurnInstruction) []PathData {
	n := &e.dataset.Nodes[node]
	chain := e.dataset.Geometry.Chain(n.GeometryID)

	out := []PathData{{
		Location:    from,
		NameID:      n.NameID,
		Instruction: first,
		Mode:        n.Mode,
	}}

	var cumDs, cumDm uint32
	lastDs, lastDm := srcDs, srcDm
	for _, seg := range chain {
		endDs := cumDs + seg.FwdWeightDs
		endDm := cumDm + seg.DistanceDm
		if endDm > srcDm && endDm < tgtDm {
			out = append(out, PathData{
				Location:    e.dataset.Coords[seg.Node],
				NameID:      n.NameID,
				Instruction: graph.NoTurn,
				DurationDs:  saturatingSub(endDs, lastDs),
				DistanceDm:  saturatingSub(endDm, lastDm),
				Mode:        n.Mode,
			})
			lastDs, lastDm = endDs, endDm
		}
		cumDs, cumDm = endDs, endDm
	}

	out = append(out, PathData{
		Location:    to,
		NameID:      n.NameID,
		Instruction: graph.NoTurn,
		DurationDs:  saturatingSub(tgtDs, lastDs),
		DistanceDm:  saturatingSub(tgtDm, lastDm),
		Mode:        n.Mode,
	})
	return out
}

// phantomOffsets picks the offsets matching whichever direction of the
// phantom the search used.
func phantomOffsets(p PhantomPoint, node uint32) (ds, dm uint32) {
	if node == p.ForwardNode {
		return p.FwdOffsetDs, p.FwdOffsetDm
	}
	return p.RevOffsetDs, p.RevOffsetDm
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
