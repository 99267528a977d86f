package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"route_engine/pkg/datastore"
	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/routing"
	"route_engine/pkg/storage"
)

// Handlers serves the query API against the active dataset generation.
type Handlers struct {
	store        *datastore.Store
	queryTimeout time.Duration
	mapped       bool
	logger       zerolog.Logger
}

// NewHandlers wires the handlers to the dataset store.
func NewHandlers(store *datastore.Store, queryTimeout time.Duration, mapped bool, logger zerolog.Logger) *Handlers {
	return &Handlers{store: store, queryTimeout: queryTimeout, mapped: mapped, logger: logger}
}

// HandleRoute handles POST /route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "InvalidRequest"})
		return
	}
	for _, c := range req.Coordinates {
		if !validCoordinate(c) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "InvalidCoordinates"})
			return
		}
	}

	entry := h.store.Acquire()
	defer h.store.Release()
	engine := entry.Engine

	waypoints := make([]routing.Waypoint, len(req.Coordinates))
	for i, c := range req.Coordinates {
		waypoints[i] = routing.Waypoint{Lat: c[0], Lon: c[1]}
		if i < len(req.Bearings) && req.Bearings[i] != nil {
			waypoints[i].Bearing = &routing.BearingFilter{
				Bearing:   req.Bearings[i].Value,
				Tolerance: req.Bearings[i].Tolerance,
			}
		}
		if i < len(req.UTurns) {
			waypoints[i].UTurnAllowed = req.UTurns[i]
		}
		if i < len(req.Hints) {
			waypoints[i].Hint = req.Hints[i]
		}
	}

	metric := -1
	if req.Metric != "" {
		metric = metricIndex(engine.Dataset().QueryGraph, req.Metric)
		if metric < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "UnknownMetric", Message: req.Metric})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	route, err := engine.Route(ctx, waypoints, routing.RouteOptions{Metric: metric})
	if err != nil {
		h.writeRouteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.buildResponse(engine, route, &req))
}

func (h *Handlers) writeRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrNoRoute), errors.Is(err, routing.ErrTooFewWaypoints):
		writeJSON(w, http.StatusOK, RouteResponse{Code: "NoRoute"})
	case errors.Is(err, routing.ErrNoSegment):
		writeJSON(w, http.StatusOK, RouteResponse{Code: "NoSegment"})
	case errors.Is(err, routing.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Code: "Timeout"})
	default:
		h.logger.Error().Err(err).Msg("route query failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "InternalError"})
	}
}

func (h *Handlers) buildResponse(engine *routing.Engine, route *routing.Route, req *RouteRequest) RouteResponse {
	resp := RouteResponse{
		Code:           "Ok",
		DistanceMeters: route.DistanceM,
		DurationSec:    route.DurationS,
		Hints:          route.Hints,
	}

	coords := make([]geo.Coordinate, len(route.Path))
	for i := range route.Path {
		coords[i] = route.Path[i].Location
	}
	zoom := geo.MaxZoom
	if req.Zoom != nil {
		zoom = *req.Zoom
	}
	coords = geo.DouglasPeucker(coords, zoom)

	switch req.Geometry {
	case "", "polyline":
		resp.Geometry = geo.EncodePolyline5(coords)
	case "polyline6":
		resp.Geometry = geo.EncodePolyline6(coords)
	case "geojson":
		line := GeoJSONLineString{Type: "LineString", Coordinates: make([][2]float64, len(coords))}
		for i, c := range coords {
			line.Coordinates[i] = [2]float64{c.LonF(), c.LatF()}
		}
		resp.Geometry = line
	case "none":
	}

	if req.Instructions {
		resp.Instructions = buildInstructions(engine, route.Path)
	}
	return resp
}

// buildInstructions compresses the point stream into guidance steps:
// each necessary instruction opens a step that accumulates until the
// next one.
func buildInstructions(engine *routing.Engine, path []routing.PathData) []StepJSON {
	names := engine.Dataset().Names
	var steps []StepJSON

	for _, p := range path {
		if p.Instruction.IsNecessary() {
			steps = append(steps, StepJSON{
				Instruction: p.Instruction.String(),
				Name:        names.Get(p.NameID),
				Location:    [2]float64{p.Location.LatF(), p.Location.LonF()},
			})
		}
		if len(steps) > 0 {
			steps[len(steps)-1].DistanceMeters += float64(p.DistanceDm) / 10
			steps[len(steps)-1].DurationSec += float64(p.DurationDs) / 10
		}
	}
	return steps
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	entry := h.store.Acquire()
	defer h.store.Release()
	ds := entry.Engine.Dataset()

	writeJSON(w, http.StatusOK, StatsResponse{
		Nodes:     ds.QueryGraph.NumNodes,
		Edges:     len(ds.QueryGraph.Edges),
		CoreNodes: ds.QueryGraph.Core.Count(),
		Metrics:   ds.QueryGraph.FilterNames,
		Timestamp: ds.Timestamp,
	})
}

// HandleReload handles POST /admin/reload: swaps in a new dataset with
// zero downtime.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.Base == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "InvalidRequest"})
		return
	}

	if err := h.store.Reload(req.Base, h.mapped, h.logger); err != nil {
		code := "InternalError"
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrIncompatible) || errors.Is(err, storage.ErrCorrupt) {
			code = "IncompatibleDataset"
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "reloaded"})
}

func metricIndex(qg *graph.QueryGraph, name string) int {
	for i, n := range qg.FilterNames {
		if n == name {
			return i
		}
	}
	return -1
}

func validCoordinate(c [2]float64) bool {
	lat, lon := c[0], c[1]
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
