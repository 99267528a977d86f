// Package osmdata extracts a routable street network from an OSM PBF
// file: ways judged by the profile, node coordinates and barrier flags,
// and via-node turn restrictions resolved from relations.
package osmdata

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/rs/zerolog"

	"route_engine/pkg/profile"
)

// ErrViaWayRestriction marks restriction relations whose via member is a
// way. Only via-node restrictions are supported; guessing a pivot node
// would silently forbid the wrong turns.
var ErrViaWayRestriction = errors.New("osmdata: via-way restriction unsupported")

// ParsedWay is a routable way with the profile verdict attached.
type ParsedWay struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
	Result  profile.WayResult
}

// RawRestriction is a turn restriction on external node ids.
type RawRestriction struct {
	FromNode osm.NodeID
	ViaNode  osm.NodeID
	ToNode   osm.NodeID
	Only     bool
}

// ParseResult is the extraction output on external identifiers.
type ParseResult struct {
	Ways         []ParsedWay
	NodeCoord    map[osm.NodeID][2]float64 // lat, lon
	Barrier      map[osm.NodeID]bool
	Signal       map[osm.NodeID]bool
	Restrictions []RawRestriction
}

// rawRelation keeps the member ids of a restriction relation until the
// way pass is complete and node resolution becomes possible.
type rawRelation struct {
	id      osm.RelationID
	fromWay osm.WayID
	viaNode osm.NodeID
	toWay   osm.WayID
	only    bool
}

// Parse scans the PBF twice: ways and relations first, then the
// coordinates and tags of referenced nodes. The reader must support
// seeking back for the second pass.
func Parse(ctx context.Context, rs io.ReadSeeker, prof profile.Profile, logger zerolog.Logger) (*ParseResult, error) {
	referenced := make(map[osm.NodeID]struct{})
	var ways []ParsedWay
	var relations []rawRelation
	wayNodes := make(map[osm.WayID][]osm.NodeID)

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true

	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Way:
			result, ok := prof.Way(tagMap(obj.Tags))
			if !ok || len(obj.Nodes) < 2 {
				continue
			}
			nodeIDs := make([]osm.NodeID, len(obj.Nodes))
			for i, wn := range obj.Nodes {
				nodeIDs[i] = wn.ID
				referenced[wn.ID] = struct{}{}
			}
			ways = append(ways, ParsedWay{ID: obj.ID, NodeIDs: nodeIDs, Result: result})
			wayNodes[obj.ID] = nodeIDs

		case *osm.Relation:
			if !prof.UseTurnRestrictions() {
				continue
			}
			rel, applies, err := parseRestriction(obj, prof)
			if err != nil {
				scanner.Close()
				return nil, err
			}
			if applies {
				relations = append(relations, rel)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways, relations): %w", err)
	}
	scanner.Close()

	logger.Info().
		Int("ways", len(ways)).
		Int("restrictions", len(relations)).
		Int("referenced_nodes", len(referenced)).
		Msg("way pass complete")

	// Pass 2: coordinates and barrier tags of referenced nodes.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID][2]float64, len(referenced))
	barrier := make(map[osm.NodeID]bool)
	signal := make(map[osm.NodeID]bool)

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		coords[n.ID] = [2]float64{n.Lat, n.Lon}
		if len(n.Tags) > 0 {
			verdict := prof.Node(tagMap(n.Tags))
			if verdict.IsBarrier {
				barrier[n.ID] = true
			}
			if verdict.IsSignal {
				signal[n.ID] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	logger.Info().Int("nodes", len(coords)).Msg("node pass complete")

	restrictions, dropped := resolveRestrictions(relations, wayNodes)
	if dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("restrictions referencing missing ways skipped")
	}

	return &ParseResult{
		Ways:         ways,
		NodeCoord:    coords,
		Barrier:      barrier,
		Signal:       signal,
		Restrictions: restrictions,
	}, nil
}

// parseRestriction validates a restriction relation. applies is false
// when the relation is not a restriction, carries an exception matching
// the profile, or has an unrecognized kind.
func parseRestriction(rel *osm.Relation, prof profile.Profile) (rawRelation, bool, error) {
	tags := tagMap(rel.Tags)
	if tags["type"] != "restriction" {
		return rawRelation{}, false, nil
	}

	kind := tags["restriction"]
	var only bool
	switch {
	case len(kind) > 5 && kind[:5] == "only_":
		only = true
	case len(kind) > 3 && kind[:3] == "no_":
		only = false
	default:
		return rawRelation{}, false, nil
	}

	// An except class the profile belongs to lifts the restriction.
	if except := tags["except"]; except != "" {
		for _, class := range splitList(except) {
			for _, mine := range prof.Exceptions() {
				if class == mine {
					return rawRelation{}, false, nil
				}
			}
		}
	}

	out := rawRelation{id: rel.ID, only: only}
	for _, m := range rel.Members {
		switch m.Role {
		case "from":
			if m.Type == osm.TypeWay {
				out.fromWay = osm.WayID(m.Ref)
			}
		case "to":
			if m.Type == osm.TypeWay {
				out.toWay = osm.WayID(m.Ref)
			}
		case "via":
			switch m.Type {
			case osm.TypeNode:
				out.viaNode = osm.NodeID(m.Ref)
			case osm.TypeWay:
				return rawRelation{}, false,
					fmt.Errorf("%w: relation %d", ErrViaWayRestriction, rel.ID)
			}
		}
	}
	if out.fromWay == 0 || out.toWay == 0 || out.viaNode == 0 {
		return rawRelation{}, false, nil
	}
	return out, true, nil
}

// resolveRestrictions turns (from_way, via_node, to_way) triples into
// node triples by locating the way nodes adjacent to the via node.
func resolveRestrictions(relations []rawRelation, wayNodes map[osm.WayID][]osm.NodeID) ([]RawRestriction, int) {
	var out []RawRestriction
	dropped := 0
	for _, rel := range relations {
		from := adjacentNode(wayNodes[rel.fromWay], rel.viaNode)
		to := adjacentNode(wayNodes[rel.toWay], rel.viaNode)
		if from == 0 || to == 0 {
			dropped++
			continue
		}
		out = append(out, RawRestriction{
			FromNode: from,
			ViaNode:  rel.viaNode,
			ToNode:   to,
			Only:     rel.only,
		})
	}
	return out, dropped
}

// adjacentNode finds the node next to via in a way's node list.
func adjacentNode(nodes []osm.NodeID, via osm.NodeID) osm.NodeID {
	for i, n := range nodes {
		if n != via {
			continue
		}
		if i > 0 {
			return nodes[i-1]
		}
		if i+1 < len(nodes) {
			return nodes[i+1]
		}
	}
	return 0
}

func tagMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func splitList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ';' || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
