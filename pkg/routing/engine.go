package routing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
)

// Dataset is everything the query engine reads. The slices may be
// backed by owned buffers or by a read-only mapped region; the engine
// never writes through them.
type Dataset struct {
	QueryGraph  *graph.QueryGraph
	Nodes       []graph.EdgeBasedNode
	Annotations []graph.EdgeAnnotation
	Geometry    *graph.Geometry
	Coords      []geo.Coordinate
	Names       *graph.StringTable
	Checksum    uint32
	Timestamp   string
}

// Waypoint is one query coordinate with its per-waypoint options.
type Waypoint struct {
	Lat          float64
	Lon          float64
	Bearing      *BearingFilter
	UTurnAllowed bool
	Hint         string
}

// RouteOptions tune one route query.
type RouteOptions struct {
	// Metric selects a per-metric edge filter; negative means the
	// unfiltered default metric.
	Metric int

	// RadiusM overrides the snapping radius.
	RadiusM float64
}

// Route is the annotated result of a query.
type Route struct {
	WeightDs  uint32
	DurationS float64
	DistanceM float64
	Path      []PathData
	Hints     []string
}

// Engine answers route queries against one loaded dataset. Workers
// share the immutable dataset; search state is pooled and reset by
// generation bump between queries.
type Engine struct {
	dataset *Dataset
	snapper *Snapper
	pool    sync.Pool
	logger  zerolog.Logger
}

// NewEngine builds the spatial index and the query-state pool.
func NewEngine(ds *Dataset, logger zerolog.Logger) *Engine {
	e := &Engine{
		dataset: ds,
		snapper: NewSnapper(ds.Nodes, ds.Geometry, ds.Coords),
		logger:  logger,
	}
	e.pool.New = func() any {
		return newQueryState(ds.QueryGraph.NumNodes)
	}
	return e
}

// Dataset exposes the loaded dataset for stats endpoints.
func (e *Engine) Dataset() *Dataset { return e.dataset }

// Snap resolves a waypoint to a phantom point, honoring its hint when
// it matches the dataset.
func (e *Engine) Snap(wp Waypoint, radiusM float64) (PhantomPoint, error) {
	if wp.Hint != "" {
		if p, ok := DecodeHint(wp.Hint, e.dataset.Checksum); ok {
			return p, nil
		}
	}
	return e.snapper.Snap(wp.Lat, wp.Lon, SnapOptions{RadiusM: radiusM, Bearing: wp.Bearing})
}

// Route computes an annotated shortest path through all waypoints.
// Queries with K waypoints decompose into K-1 legs that are searched
// independently and concatenated; legs never merge across a waypoint.
func (e *Engine) Route(ctx context.Context, waypoints []Waypoint, opts RouteOptions) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	phantoms := make([]PhantomPoint, len(waypoints))
	for i, wp := range waypoints {
		p, err := e.Snap(wp, opts.RadiusM)
		if err != nil {
			return nil, err
		}
		phantoms[i] = p
	}

	filter := e.dataset.QueryGraph.Filter(opts.Metric)

	qs := e.pool.Get().(*queryState)
	defer e.pool.Put(qs)

	route := &Route{}
	for leg := 0; leg+1 < len(phantoms); leg++ {
		weight, path, err := e.legRoute(ctx, qs, phantoms[leg], phantoms[leg+1], waypoints[leg].UTurnAllowed, filter)
		if err != nil {
			return nil, err
		}
		if leg > 0 && len(path) > 0 {
			path[0].Instruction = graph.ReachViaLocation
		}
		route.WeightDs += weight
		route.Path = append(route.Path, path...)
	}

	repairInstructions(route.Path)

	for i := range route.Path {
		route.DistanceM += float64(route.Path[i].DistanceDm) / 10
	}
	route.DurationS = float64(route.WeightDs) / 10

	route.Hints = make([]string, len(phantoms))
	for i, p := range phantoms {
		route.Hints[i] = EncodeHint(p, e.dataset.Checksum)
	}

	return route, nil
}

// legRoute resolves one leg: the within-edge cases first, then the
// bidirectional hierarchy search.
func (e *Engine) legRoute(ctx context.Context, qs *queryState, src, tgt PhantomPoint, uturnAllowed bool, filter *graph.BitVector) (uint32, []PathData, error) {
	sameFwd := src.ForwardNode != graph.InvalidNode && src.ForwardNode == tgt.ForwardNode
	sameRev := src.ReverseNode != graph.InvalidNode && src.ReverseNode == tgt.ReverseNode

	// Source before target on a shared directed edge: a plain
	// sub-segment, no expansion.
	if sameFwd && src.FwdOffsetDs <= tgt.FwdOffsetDs {
		weight := tgt.FwdOffsetDs - src.FwdOffsetDs
		if weight >= graph.DisabledWeightDs {
			return 0, nil, ErrNoRoute
		}
		path := e.directPath(src.ForwardNode,
			src.FwdOffsetDs, src.FwdOffsetDm, tgt.FwdOffsetDs, tgt.FwdOffsetDm,
			src.Location, tgt.Location, graph.HeadOn)
		return weight, path, nil
	}

	if sameFwd {
		// Wrong order along the shared edge. Reversing on the spot is a
		// u-turn; without permission the search below must loop around,
		// so the reverse twin is withheld from the seeds.
		if uturnAllowed && sameRev && src.RevOffsetDs <= tgt.RevOffsetDs {
			weight := tgt.RevOffsetDs - src.RevOffsetDs
			if weight >= graph.DisabledWeightDs {
				return 0, nil, ErrNoRoute
			}
			path := e.directPath(src.ReverseNode,
				src.RevOffsetDs, src.RevOffsetDm, tgt.RevOffsetDs, tgt.RevOffsetDm,
				src.Location, tgt.Location, graph.UTurn)
			return weight, path, nil
		}
		if !uturnAllowed {
			src.ReverseNode = graph.InvalidNode
			tgt.ReverseNode = graph.InvalidNode
		}
	} else if sameRev && src.RevOffsetDs <= tgt.RevOffsetDs {
		// Shared reverse-only direction in travel order.
		weight := tgt.RevOffsetDs - src.RevOffsetDs
		if weight >= graph.DisabledWeightDs {
			return 0, nil, ErrNoRoute
		}
		path := e.directPath(src.ReverseNode,
			src.RevOffsetDs, src.RevOffsetDm, tgt.RevOffsetDs, tgt.RevOffsetDm,
			src.Location, tgt.Location, graph.HeadOn)
		return weight, path, nil
	}

	result, err := e.search(ctx, qs, src, tgt, filter)
	if err != nil {
		return 0, nil, err
	}
	if result.weightDs >= graph.DisabledWeightDs {
		return 0, nil, ErrNoRoute
	}

	path, err := e.legPath(src, tgt, result.path)
	if err != nil {
		return 0, nil, err
	}
	return result.weightDs, path, nil
}

// repairInstructions runs the post-concatenation cleanup: promote
// silent mode changes to explicit continues, collapse repeated
// same-name straights, and tag the final point.
func repairInstructions(path []PathData) {
	if len(path) == 0 {
		return
	}

	for i := 1; i < len(path); i++ {
		if path[i].Instruction == graph.NoTurn && path[i].Mode != path[i-1].Mode {
			path[i].Instruction = graph.GoStraight
		}
	}

	lastName := path[0].NameID
	lastWasStraight := false
	for i := 1; i < len(path); i++ {
		switch path[i].Instruction {
		case graph.GoStraight:
			if lastWasStraight && path[i].NameID == lastName {
				path[i].Instruction = graph.NoTurn
			} else {
				lastWasStraight = true
				lastName = path[i].NameID
			}
		case graph.NoTurn:
			// silent points keep the running context
		default:
			lastWasStraight = false
			lastName = path[i].NameID
		}
	}

	path[len(path)-1].Instruction = graph.ReachedYourDestination
}
