package storage

import (
	"fmt"
	"hash/crc32"
	"strings"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
	"route_engine/pkg/routing"
)

// Artifact extensions, appended to the dataset base path.
const (
	ExtNodes             = ".nodes"
	ExtEdges             = ".edges"
	ExtGeometry          = ".geometry"
	ExtHSGR              = ".hsgr"
	ExtCore              = ".core"
	ExtLevel             = ".level"
	ExtRAMIndex          = ".ramIndex"
	ExtNames             = ".names"
	ExtTimestamp         = ".timestamp"
	ExtDatasourceNames   = ".datasource_names"
	ExtDatasourceIndexes = ".datasource_indexes"
)

const maxTimestampLen = 25

// node flag bits in the .ramIndex artifact.
const (
	nodeFlagRestricted = 1 << 0
	nodeFlagRoundabout = 1 << 1
	nodeFlagSmall      = 1 << 2
)

// edge flag bits in the .hsgr artifact.
const (
	edgeFlagForward  = 1 << 0
	edgeFlagBackward = 1 << 1
	edgeFlagShortcut = 1 << 2
)

// buildID fingerprints the edge-based edge set; every artifact of one
// preprocessing run carries it.
func buildID(eb *graph.EdgeBased) uint32 {
	h := crc32.NewIEEE()
	var buf [24]byte
	for i := range eb.Edges {
		e := &eb.Edges[i]
		putU32 := func(off int, v uint32) {
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
			buf[off+2] = byte(v >> 16)
			buf[off+3] = byte(v >> 24)
		}
		putU32(0, e.Source)
		putU32(4, e.Target)
		putU32(8, e.WeightDs)
		putU32(12, e.DurationDs)
		putU32(16, e.DistanceDm)
		putU32(20, e.AnnotationID)
		h.Write(buf[:])
	}
	return h.Sum32()
}

// WriteExtract persists the expanded graph: everything the contraction
// stage and the query engine need except the hierarchy itself.
func WriteExtract(base string, eb *graph.EdgeBased, externalIDs []int64, timestamp string) error {
	fp := NewFingerprint(uint64(buildID(eb)))

	if err := writeRAMIndex(base+ExtRAMIndex, fp, eb.Nodes); err != nil {
		return err
	}
	if err := writeEdges(base+ExtEdges, fp, eb); err != nil {
		return err
	}
	if err := writeGeometry(base+ExtGeometry, fp, eb.Geometry); err != nil {
		return err
	}
	if err := writeDatasources(base, fp, eb.Geometry, []string{"profile"}); err != nil {
		return err
	}
	if err := writeNames(base+ExtNames, fp, eb.Names); err != nil {
		return err
	}
	if err := writeNodes(base+ExtNodes, fp, externalIDs, eb.Coords); err != nil {
		return err
	}
	return writeTimestamp(base+ExtTimestamp, fp, timestamp)
}

// WriteContracted persists the query graph plus the override-adjusted
// copies of the extract artifacts, all under the original build id.
func WriteContracted(base string, eb *graph.EdgeBased, qg *graph.QueryGraph, sourceNames []string, id uint32) error {
	fp := NewFingerprint(uint64(id))

	if err := writeHSGR(base+ExtHSGR, fp, qg); err != nil {
		return err
	}
	if err := writeCore(base+ExtCore, fp, qg.Core); err != nil {
		return err
	}
	if err := writeLevel(base+ExtLevel, fp, qg.Level); err != nil {
		return err
	}
	if err := writeRAMIndex(base+ExtRAMIndex, fp, eb.Nodes); err != nil {
		return err
	}
	if err := writeEdges(base+ExtEdges, fp, eb); err != nil {
		return err
	}
	if err := writeGeometry(base+ExtGeometry, fp, eb.Geometry); err != nil {
		return err
	}
	return writeDatasources(base, fp, eb.Geometry, sourceNames)
}

// ExtractBundle is the loaded pre-contraction state.
type ExtractBundle struct {
	EdgeBased   *graph.EdgeBased
	ExternalIDs []int64
	Timestamp   string
	BuildID     uint32
}

// LoadExtract reads the artifacts written by WriteExtract.
func LoadExtract(base string, open Opener) (*ExtractBundle, error) {
	nodesDec, err := open(base + ExtRAMIndex)
	if err != nil {
		return nil, err
	}
	ebNodes, err := readRAMIndex(nodesDec)
	if err != nil {
		return nil, err
	}

	edgesDec, err := open(base + ExtEdges)
	if err != nil {
		return nil, err
	}
	annotations, ebEdges, err := readEdges(edgesDec)
	if err != nil {
		return nil, err
	}

	geoDec, err := open(base + ExtGeometry)
	if err != nil {
		return nil, err
	}
	dsDec, err := open(base + ExtDatasourceIndexes)
	if err != nil {
		return nil, err
	}
	geometry, err := readGeometry(geoDec, dsDec)
	if err != nil {
		return nil, err
	}

	namesDec, err := open(base + ExtNames)
	if err != nil {
		return nil, err
	}
	names, err := readNames(namesDec)
	if err != nil {
		return nil, err
	}

	nbDec, err := open(base + ExtNodes)
	if err != nil {
		return nil, err
	}
	externalIDs, coords, err := readNodes(nbDec)
	if err != nil {
		return nil, err
	}

	tsDec, err := open(base + ExtTimestamp)
	if err != nil {
		return nil, err
	}
	ts, err := tsDec.byteSlice()
	if err != nil {
		return nil, err
	}

	if err := sameBuild(nodesDec, edgesDec, geoDec, namesDec, nbDec, tsDec); err != nil {
		return nil, err
	}

	return &ExtractBundle{
		EdgeBased: &graph.EdgeBased{
			Nodes:       ebNodes,
			Edges:       ebEdges,
			Annotations: annotations,
			Geometry:    geometry,
			Coords:      coords,
			Names:       names,
		},
		ExternalIDs: externalIDs,
		Timestamp:   string(ts),
		BuildID:     uint32(nodesDec.fp.Checksum),
	}, nil
}

// LoadDataset assembles the full query-side dataset. Every artifact
// must carry the same build id, and the .hsgr edge checksum must match
// its stored value.
func LoadDataset(base string, open Opener) (*routing.Dataset, error) {
	bundle, err := LoadExtract(base, open)
	if err != nil {
		return nil, err
	}

	hsgrDec, err := open(base + ExtHSGR)
	if err != nil {
		return nil, err
	}
	qg, err := readHSGR(hsgrDec)
	if err != nil {
		return nil, err
	}

	coreDec, err := open(base + ExtCore)
	if err != nil {
		return nil, err
	}
	core, err := readBitVector(coreDec)
	if err != nil {
		return nil, err
	}
	qg.Core = core

	levelDec, err := open(base + ExtLevel)
	if err != nil {
		return nil, err
	}
	level, err := levelDec.uint32s()
	if err != nil {
		return nil, err
	}
	qg.Level = level

	if err := sameBuild(hsgrDec, coreDec, levelDec); err != nil {
		return nil, err
	}
	if uint32(hsgrDec.fp.Checksum) != bundle.BuildID {
		return nil, fmt.Errorf("%w: hierarchy build %08x, graph build %08x",
			ErrIncompatible, uint32(hsgrDec.fp.Checksum), bundle.BuildID)
	}

	if err := qg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &routing.Dataset{
		QueryGraph:  qg,
		Nodes:       bundle.EdgeBased.Nodes,
		Annotations: bundle.EdgeBased.Annotations,
		Geometry:    bundle.EdgeBased.Geometry,
		Coords:      bundle.EdgeBased.Coords,
		Names:       bundle.EdgeBased.Names,
		Checksum:    bundle.BuildID,
		Timestamp:   bundle.Timestamp,
	}, nil
}

func sameBuild(decs ...*decoder) error {
	for _, d := range decs[1:] {
		if d.fp.Checksum != decs[0].fp.Checksum {
			return fmt.Errorf("%w: artifacts from different builds", ErrIncompatible)
		}
	}
	return nil
}

// --- per-artifact encodings ---

func writeRAMIndex(path string, fp Fingerprint, nodes []graph.EdgeBasedNode) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	n := len(nodes)
	src := make([]uint32, n)
	tgt := make([]uint32, n)
	geom := make([]uint32, n)
	name := make([]uint32, n)
	weight := make([]uint32, n)
	duration := make([]uint32, n)
	distance := make([]uint32, n)
	component := make([]uint32, n)
	class := make([]byte, n)
	mode := make([]byte, n)
	flags := make([]byte, n)
	for i := range nodes {
		nd := &nodes[i]
		src[i] = nd.NBSource
		tgt[i] = nd.NBTarget
		geom[i] = nd.GeometryID
		name[i] = nd.NameID
		weight[i] = nd.WeightDs
		duration[i] = nd.DurationDs
		distance[i] = nd.DistanceDm
		component[i] = nd.ComponentID
		class[i] = byte(nd.Class)
		mode[i] = byte(nd.Mode)
		if nd.AccessRestricted {
			flags[i] |= nodeFlagRestricted
		}
		if nd.Roundabout {
			flags[i] |= nodeFlagRoundabout
		}
		if nd.SmallComponent {
			flags[i] |= nodeFlagSmall
		}
	}
	for _, s := range [][]uint32{src, tgt, geom, name, weight, duration, distance, component} {
		if err := w.uint32s(s); err != nil {
			w.abort()
			return err
		}
	}
	for _, b := range [][]byte{class, mode, flags} {
		if err := w.bytes(b); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

func readRAMIndex(d *decoder) ([]graph.EdgeBasedNode, error) {
	var cols [8][]uint32
	for i := range cols {
		c, err := d.uint32s()
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	var bcols [3][]byte
	for i := range bcols {
		b, err := d.byteSlice()
		if err != nil {
			return nil, err
		}
		bcols[i] = b
	}

	n := len(cols[0])
	nodes := make([]graph.EdgeBasedNode, n)
	for i := 0; i < n; i++ {
		nodes[i] = graph.EdgeBasedNode{
			NBSource:         cols[0][i],
			NBTarget:         cols[1][i],
			GeometryID:       cols[2][i],
			NameID:           cols[3][i],
			WeightDs:         cols[4][i],
			DurationDs:       cols[5][i],
			DistanceDm:       cols[6][i],
			ComponentID:      cols[7][i],
			Class:            profile.RoadClass(bcols[0][i]),
			Mode:             profile.TravelMode(bcols[1][i]),
			AccessRestricted: bcols[2][i]&nodeFlagRestricted != 0,
			Roundabout:       bcols[2][i]&nodeFlagRoundabout != 0,
			SmallComponent:   bcols[2][i]&nodeFlagSmall != 0,
		}
	}
	return nodes, nil
}

func writeEdges(path string, fp Fingerprint, eb *graph.EdgeBased) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}

	// Turn annotation records.
	na := len(eb.Annotations)
	via := make([]uint32, na)
	name := make([]uint32, na)
	instr := make([]byte, na)
	for i := range eb.Annotations {
		via[i] = eb.Annotations[i].ViaNode
		name[i] = eb.Annotations[i].NameID
		instr[i] = byte(eb.Annotations[i].Instruction)
	}

	// Edge-based edge columns for re-contraction.
	ne := len(eb.Edges)
	src := make([]uint32, ne)
	tgt := make([]uint32, ne)
	weight := make([]uint32, ne)
	duration := make([]uint32, ne)
	distance := make([]uint32, ne)
	ann := make([]uint32, ne)
	for i := range eb.Edges {
		e := &eb.Edges[i]
		src[i] = e.Source
		tgt[i] = e.Target
		weight[i] = e.WeightDs
		duration[i] = e.DurationDs
		distance[i] = e.DistanceDm
		ann[i] = e.AnnotationID
	}

	for _, s := range [][]uint32{via, name} {
		if err := w.uint32s(s); err != nil {
			w.abort()
			return err
		}
	}
	if err := w.bytes(instr); err != nil {
		w.abort()
		return err
	}
	for _, s := range [][]uint32{src, tgt, weight, duration, distance, ann} {
		if err := w.uint32s(s); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

func readEdges(d *decoder) ([]graph.EdgeAnnotation, []graph.EdgeBasedEdge, error) {
	via, err := d.uint32s()
	if err != nil {
		return nil, nil, err
	}
	name, err := d.uint32s()
	if err != nil {
		return nil, nil, err
	}
	instr, err := d.byteSlice()
	if err != nil {
		return nil, nil, err
	}
	annotations := make([]graph.EdgeAnnotation, len(via))
	for i := range via {
		annotations[i] = graph.EdgeAnnotation{
			ViaNode:     via[i],
			NameID:      name[i],
			Instruction: graph.TurnInstruction(instr[i]),
		}
	}

	var cols [6][]uint32
	for i := range cols {
		c, err := d.uint32s()
		if err != nil {
			return nil, nil, err
		}
		cols[i] = c
	}
	edges := make([]graph.EdgeBasedEdge, len(cols[0]))
	for i := range edges {
		edges[i] = graph.EdgeBasedEdge{
			Source:       cols[0][i],
			Target:       cols[1][i],
			WeightDs:     cols[2][i],
			DurationDs:   cols[3][i],
			DistanceDm:   cols[4][i],
			AnnotationID: cols[5][i],
		}
	}
	return annotations, edges, nil
}

func writeGeometry(path string, fp Fingerprint, g *graph.Geometry) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	n := len(g.Segments)
	node := make([]uint32, n)
	fwd := make([]uint32, n)
	rev := make([]uint32, n)
	dist := make([]uint32, n)
	for i := range g.Segments {
		node[i] = g.Segments[i].Node
		fwd[i] = g.Segments[i].FwdWeightDs
		rev[i] = g.Segments[i].RevWeightDs
		dist[i] = g.Segments[i].DistanceDm
	}
	for _, s := range [][]uint32{g.Offsets, node, fwd, rev, dist} {
		if err := w.uint32s(s); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

func readGeometry(d *decoder, ds *decoder) (*graph.Geometry, error) {
	offsets, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	var cols [4][]uint32
	for i := range cols {
		c, err := d.uint32s()
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}

	fwdSrc, err := ds.byteSlice()
	if err != nil {
		return nil, err
	}
	revSrc, err := ds.byteSlice()
	if err != nil {
		return nil, err
	}
	if len(fwdSrc) != len(cols[0]) || len(revSrc) != len(cols[0]) {
		return nil, fmt.Errorf("%w: datasource index count mismatch", ErrCorrupt)
	}

	segments := make([]graph.GeometrySegment, len(cols[0]))
	for i := range segments {
		segments[i] = graph.GeometrySegment{
			Node:        cols[0][i],
			FwdWeightDs: cols[1][i],
			RevWeightDs: cols[2][i],
			DistanceDm:  cols[3][i],
			FwdSource:   fwdSrc[i],
			RevSource:   revSrc[i],
		}
	}
	if len(offsets) == 0 {
		offsets = []uint32{0}
	}
	return &graph.Geometry{Offsets: offsets, Segments: segments}, nil
}

func writeDatasources(base string, fp Fingerprint, g *graph.Geometry, sourceNames []string) error {
	w, err := newArtifactWriter(base+ExtDatasourceIndexes, fp)
	if err != nil {
		return err
	}
	n := len(g.Segments)
	fwd := make([]byte, n)
	rev := make([]byte, n)
	for i := range g.Segments {
		fwd[i] = g.Segments[i].FwdSource
		rev[i] = g.Segments[i].RevSource
	}
	if err := w.bytes(fwd); err != nil {
		w.abort()
		return err
	}
	if err := w.bytes(rev); err != nil {
		w.abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	nw, err := newArtifactWriter(base+ExtDatasourceNames, fp)
	if err != nil {
		return err
	}
	if err := nw.bytes([]byte(strings.Join(sourceNames, "\n"))); err != nil {
		nw.abort()
		return err
	}
	return nw.Close()
}

func writeNames(path string, fp Fingerprint, names *graph.StringTable) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	values := names.Values()
	offsets := make([]uint32, len(values)+1)
	var packed []byte
	for i, v := range values {
		offsets[i] = uint32(len(packed))
		packed = append(packed, v...)
	}
	offsets[len(values)] = uint32(len(packed))
	if err := w.uint32s(offsets); err != nil {
		w.abort()
		return err
	}
	if err := w.bytes(packed); err != nil {
		w.abort()
		return err
	}
	return w.Close()
}

func readNames(d *decoder) (*graph.StringTable, error) {
	offsets, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	packed, err := d.byteSlice()
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return graph.NewStringTable(), nil
	}
	values := make([]string, len(offsets)-1)
	for i := range values {
		if offsets[i+1] < offsets[i] || int(offsets[i+1]) > len(packed) {
			return nil, fmt.Errorf("%w: name table offsets", ErrCorrupt)
		}
		values[i] = string(packed[offsets[i]:offsets[i+1]])
	}
	return graph.TableFromValues(values), nil
}

func writeNodes(path string, fp Fingerprint, externalIDs []int64, coords []geo.Coordinate) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	lat := make([]int32, len(coords))
	lon := make([]int32, len(coords))
	for i := range coords {
		lat[i] = coords[i].Lat
		lon[i] = coords[i].Lon
	}
	if err := w.int64s(externalIDs); err != nil {
		w.abort()
		return err
	}
	if err := w.int32s(lat); err != nil {
		w.abort()
		return err
	}
	if err := w.int32s(lon); err != nil {
		w.abort()
		return err
	}
	return w.Close()
}

func readNodes(d *decoder) ([]int64, []geo.Coordinate, error) {
	ids, err := d.int64s()
	if err != nil {
		return nil, nil, err
	}
	lat, err := d.int32s()
	if err != nil {
		return nil, nil, err
	}
	lon, err := d.int32s()
	if err != nil {
		return nil, nil, err
	}
	if len(lat) != len(ids) || len(lon) != len(ids) {
		return nil, nil, fmt.Errorf("%w: node column mismatch", ErrCorrupt)
	}
	coords := make([]geo.Coordinate, len(ids))
	for i := range coords {
		coords[i] = geo.Coordinate{Lat: lat[i], Lon: lon[i]}
	}
	return ids, coords, nil
}

func writeTimestamp(path string, fp Fingerprint, timestamp string) error {
	if len(timestamp) > maxTimestampLen {
		timestamp = timestamp[:maxTimestampLen]
	}
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	if err := w.bytes([]byte(timestamp)); err != nil {
		w.abort()
		return err
	}
	return w.Close()
}

func writeHSGR(path string, fp Fingerprint, qg *graph.QueryGraph) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}

	n := len(qg.Edges)
	tgt := make([]uint32, n)
	weight := make([]uint32, n)
	duration := make([]uint32, n)
	distance := make([]uint32, n)
	payload := make([]uint32, n)
	flags := make([]byte, n)
	for i := range qg.Edges {
		e := &qg.Edges[i]
		tgt[i] = e.Target
		weight[i] = e.Data.WeightDs
		duration[i] = e.Data.DurationDs
		distance[i] = e.Data.DistanceDm
		payload[i] = e.Data.Payload
		if e.Data.Forward {
			flags[i] |= edgeFlagForward
		}
		if e.Data.Backward {
			flags[i] |= edgeFlagBackward
		}
		if e.Data.IsShortcut {
			flags[i] |= edgeFlagShortcut
		}
	}

	edgesCRC := hsgrEdgesCRC(tgt, weight, duration, distance, payload, flags)

	if err := w.uint32s([]uint32{edgesCRC, qg.NumNodes, uint32(n)}); err != nil {
		w.abort()
		return err
	}
	if err := w.uint32s(qg.FirstOut); err != nil {
		w.abort()
		return err
	}
	for _, s := range [][]uint32{tgt, weight, duration, distance, payload} {
		if err := w.uint32s(s); err != nil {
			w.abort()
			return err
		}
	}
	if err := w.bytes(flags); err != nil {
		w.abort()
		return err
	}

	// Per-metric filters.
	if err := w.uint32s([]uint32{uint32(len(qg.Filters))}); err != nil {
		w.abort()
		return err
	}
	for i := range qg.Filters {
		if err := w.bytes([]byte(qg.FilterNames[i])); err != nil {
			w.abort()
			return err
		}
		if err := w.uint32s([]uint32{qg.Filters[i].Len()}); err != nil {
			w.abort()
			return err
		}
		if err := w.uint64s(qg.Filters[i].Words()); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

func readHSGR(d *decoder) (*graph.QueryGraph, error) {
	head, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	if len(head) != 3 {
		return nil, fmt.Errorf("%w: hierarchy header", ErrCorrupt)
	}
	storedCRC, numNodes, numEdges := head[0], head[1], head[2]

	firstOut, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	var cols [5][]uint32
	for i := range cols {
		c, err := d.uint32s()
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	flags, err := d.byteSlice()
	if err != nil {
		return nil, err
	}

	if uint32(len(cols[0])) != numEdges || uint32(len(flags)) != numEdges {
		return nil, fmt.Errorf("%w: hierarchy edge columns", ErrCorrupt)
	}
	if computed := hsgrEdgesCRC(cols[0], cols[1], cols[2], cols[3], cols[4], flags); computed != storedCRC {
		return nil, fmt.Errorf("%w: hierarchy edge checksum %08x, stored %08x",
			ErrIncompatible, computed, storedCRC)
	}

	edges := make([]graph.QueryEdge, numEdges)
	for i := range edges {
		edges[i] = graph.QueryEdge{
			Target: cols[0][i],
			Data: graph.EdgeData{
				WeightDs:   cols[1][i],
				DurationDs: cols[2][i],
				DistanceDm: cols[3][i],
				Payload:    cols[4][i],
				Forward:    flags[i]&edgeFlagForward != 0,
				Backward:   flags[i]&edgeFlagBackward != 0,
				IsShortcut: flags[i]&edgeFlagShortcut != 0,
			},
		}
	}

	qg := &graph.QueryGraph{
		NumNodes: numNodes,
		FirstOut: firstOut,
		Edges:    edges,
	}

	filterHead, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	if len(filterHead) != 1 {
		return nil, fmt.Errorf("%w: filter header", ErrCorrupt)
	}
	for i := uint32(0); i < filterHead[0]; i++ {
		name, err := d.byteSlice()
		if err != nil {
			return nil, err
		}
		bits, err := d.uint32s()
		if err != nil {
			return nil, err
		}
		words, err := d.uint64s()
		if err != nil {
			return nil, err
		}
		if len(bits) != 1 {
			return nil, fmt.Errorf("%w: filter length", ErrCorrupt)
		}
		qg.FilterNames = append(qg.FilterNames, string(name))
		qg.Filters = append(qg.Filters, graph.BitVectorFromWords(words, bits[0]))
	}
	return qg, nil
}

func hsgrEdgesCRC(tgt, weight, duration, distance, payload []uint32, flags []byte) uint32 {
	h := crc32.NewIEEE()
	for _, s := range [][]uint32{tgt, weight, duration, distance, payload} {
		h.Write(u32Bytes(s))
	}
	h.Write(flags)
	return h.Sum32()
}

func writeCore(path string, fp Fingerprint, core *graph.BitVector) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	if err := w.uint32s([]uint32{core.Len()}); err != nil {
		w.abort()
		return err
	}
	if err := w.uint64s(core.Words()); err != nil {
		w.abort()
		return err
	}
	return w.Close()
}

func readBitVector(d *decoder) (*graph.BitVector, error) {
	head, err := d.uint32s()
	if err != nil {
		return nil, err
	}
	if len(head) != 1 {
		return nil, fmt.Errorf("%w: bit vector header", ErrCorrupt)
	}
	words, err := d.uint64s()
	if err != nil {
		return nil, err
	}
	return graph.BitVectorFromWords(words, head[0]), nil
}

func writeLevel(path string, fp Fingerprint, level []uint32) error {
	w, err := newArtifactWriter(path, fp)
	if err != nil {
		return err
	}
	if err := w.uint32s(level); err != nil {
		w.abort()
		return err
	}
	return w.Close()
}
