package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already
// the same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the size of the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// smallComponentThreshold is the edge-based node count below which a
// component is considered unsuitable as a snapping target when a larger
// one is in range.
const smallComponentThreshold = 1000

// TagComponents assigns component ids to every edge-based node, treating
// turns as undirected connections, and flags members of components
// smaller than the threshold. Snapping prefers large-component edges so
// a coastal query does not land on an island across the water.
func TagComponents(eb *EdgeBased) {
	n := uint32(len(eb.Nodes))
	if n == 0 {
		return
	}

	uf := NewUnionFind(n)
	for i := range eb.Edges {
		uf.Union(eb.Edges[i].Source, eb.Edges[i].Target)
	}

	// Opposite directions of the same road are one travel component.
	bySegment := make(map[[2]uint32]uint32, n)
	for i := range eb.Nodes {
		key := [2]uint32{eb.Nodes[i].NBTarget, eb.Nodes[i].NBSource}
		if other, ok := bySegment[key]; ok {
			uf.Union(uint32(i), other)
		}
		bySegment[[2]uint32{eb.Nodes[i].NBSource, eb.Nodes[i].NBTarget}] = uint32(i)
	}

	// Dense component ids in first-seen order.
	idByRoot := make(map[uint32]uint32)
	for i := uint32(0); i < n; i++ {
		root := uf.Find(i)
		id, ok := idByRoot[root]
		if !ok {
			id = uint32(len(idByRoot))
			idByRoot[root] = id
		}
		eb.Nodes[i].ComponentID = id
		eb.Nodes[i].SmallComponent = uf.Size(i) < smallComponentThreshold
	}
}
