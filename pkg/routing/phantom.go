package routing

import (
	"encoding/base64"

	"github.com/goccy/go-json"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
)

// PhantomPoint is a query coordinate projected onto an edge-based edge.
// The forward node travels the underlying segment in chain order, the
// reverse node (when the road is bidirectional) against it. Offsets are
// the weight consumed from each node's segment start up to the point.
type PhantomPoint struct {
	ForwardNode uint32 `json:"f"`
	ReverseNode uint32 `json:"r"`

	FwdOffsetDs uint32 `json:"fo"`
	RevOffsetDs uint32 `json:"ro"`

	// Distance offsets along the chain, for geometry trimming.
	FwdOffsetDm uint32 `json:"fd"`
	RevOffsetDm uint32 `json:"rd"`

	Location       geo.Coordinate `json:"l"`
	NameID         uint32         `json:"n"`
	ComponentID    uint32         `json:"c"`
	SmallComponent bool           `json:"s"`
}

// Valid reports whether at least one direction is usable.
func (p *PhantomPoint) Valid() bool {
	return p.ForwardNode != graph.InvalidNode || p.ReverseNode != graph.InvalidNode
}

// hintEnvelope binds a phantom snapshot to the dataset it was computed
// against.
type hintEnvelope struct {
	Checksum uint32       `json:"k"`
	Phantom  PhantomPoint `json:"p"`
}

// EncodeHint packs a phantom into an opaque base64 token tied to the
// dataset checksum.
func EncodeHint(p PhantomPoint, checksum uint32) string {
	raw, err := json.Marshal(hintEnvelope{Checksum: checksum, Phantom: p})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeHint unpacks a hint token. The checksum must match the loaded
// dataset, otherwise the hint is silently unusable and the caller falls
// back to a fresh spatial lookup.
func DecodeHint(token string, checksum uint32) (PhantomPoint, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PhantomPoint{}, false
	}
	var env hintEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PhantomPoint{}, false
	}
	if env.Checksum != checksum || !env.Phantom.Valid() {
		return PhantomPoint{}, false
	}
	return env.Phantom, true
}
