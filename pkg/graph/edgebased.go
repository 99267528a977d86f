package graph

import (
	"route_engine/pkg/geo"
	"route_engine/pkg/profile"
)

// EdgeBasedNode is a node of the edge-based graph: one surviving
// directed node-based edge. Routing happens between these.
type EdgeBasedNode struct {
	NBSource   uint32 // node-based endpoints
	NBTarget   uint32
	GeometryID uint32
	NameID     uint32

	WeightDs   uint32 // traversal weight of the underlying segment chain
	DurationDs uint32
	DistanceDm uint32

	Class profile.RoadClass
	Mode  profile.TravelMode

	AccessRestricted bool
	Roundabout       bool

	ComponentID    uint32
	SmallComponent bool
}

// EdgeBasedEdge is a legal turn between two edge-based nodes. Weight
// includes the target segment's traversal weight plus the turn penalty.
type EdgeBasedEdge struct {
	Source     uint32
	Target     uint32
	WeightDs   uint32
	DurationDs uint32
	DistanceDm uint32
	AnnotationID uint32
}

// EdgeAnnotation is the per-turn record persisted to the .edges artifact
// and consulted during path annotation.
type EdgeAnnotation struct {
	ViaNode     uint32 // edge-based node traversed by this turn's target
	NameID      uint32
	Instruction TurnInstruction
}

// EdgeBased is the full edge-expanded graph handed to the contractor.
// Coords stay indexed by node-based node id; geometry chains reference
// them during path annotation.
type EdgeBased struct {
	Nodes       []EdgeBasedNode
	Edges       []EdgeBasedEdge
	Annotations []EdgeAnnotation
	Geometry    *Geometry
	Coords      []geo.Coordinate
	Names       *StringTable
}
