package graph

// GeometrySegment is one piece of a compressed geometry chain. Node is
// the node-based node the segment leads to when traversing the chain in
// forward order; weights cover both traversal directions so that a speed
// override on one carriageway side leaves the other untouched.
type GeometrySegment struct {
	Node        uint32
	FwdWeightDs uint32
	RevWeightDs uint32
	DistanceDm  uint32
	FwdSource   uint8 // 0 = profile, 1..N = override file index
	RevSource   uint8
}

// Geometry packs the compressed chains of all surviving node-based edges.
// Chain i occupies segments Offsets[i]..Offsets[i+1]; the source node of
// the chain is implicit in the owning edge, the final segment's Node is
// the edge target.
type Geometry struct {
	Offsets  []uint32
	Segments []GeometrySegment
}

// NewGeometry returns an empty container.
func NewGeometry() *Geometry {
	return &Geometry{Offsets: []uint32{0}}
}

// Add appends a chain and returns its geometry id.
func (g *Geometry) Add(segments []GeometrySegment) uint32 {
	id := uint32(len(g.Offsets) - 1)
	g.Segments = append(g.Segments, segments...)
	g.Offsets = append(g.Offsets, uint32(len(g.Segments)))
	return id
}

// Count returns the number of stored chains.
func (g *Geometry) Count() uint32 { return uint32(len(g.Offsets) - 1) }

// Range returns the segment index range of chain id.
func (g *Geometry) Range(id uint32) (start, end uint32) {
	return g.Offsets[id], g.Offsets[id+1]
}

// Chain returns the segments of chain id. The slice aliases the packed
// array; callers may mutate weights in place when applying overrides.
func (g *Geometry) Chain(id uint32) []GeometrySegment {
	start, end := g.Range(id)
	return g.Segments[start:end]
}

// SumForward returns the total forward weight of chain id. The owning
// edge's weight must equal this sum at all times.
func (g *Geometry) SumForward(id uint32) uint32 {
	var sum uint32
	for _, s := range g.Chain(id) {
		sum += s.FwdWeightDs
	}
	return sum
}

// SumReverse returns the total reverse weight of chain id.
func (g *Geometry) SumReverse(id uint32) uint32 {
	var sum uint32
	for _, s := range g.Chain(id) {
		sum += s.RevWeightDs
	}
	return sum
}
