package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route_engine/pkg/ch"
	"route_engine/pkg/config"
	"route_engine/pkg/datastore"
	"route_engine/pkg/expand"
	"route_engine/pkg/geo"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
	"route_engine/pkg/routing"
)

type quietProfile struct{}

func (quietProfile) Way(map[string]string) (profile.WayResult, bool) {
	return profile.WayResult{}, false
}
func (quietProfile) Node(map[string]string) profile.NodeResult { return profile.NodeResult{} }
func (quietProfile) TurnPenalty(float64, profile.TravelMode, profile.TravelMode) uint32 {
	return 0
}
func (quietProfile) UTurnPenalty() (uint32, bool) { return 0, false }
func (quietProfile) TrafficSignalPenalty() uint32 { return 0 }
func (quietProfile) Exceptions() []string         { return nil }
func (quietProfile) UseTurnRestrictions() bool    { return true }

func testHandler(t *testing.T) http.Handler {
	t.Helper()

	// Three nodes 1000 m apart on the equator, 36 km/h.
	lon := func(m float64) float64 { return m / 111_319.49 }
	coords := []geo.Coordinate{
		geo.MakeCoordinate(0, 0),
		geo.MakeCoordinate(0, lon(1000)),
		geo.MakeCoordinate(0, lon(2000)),
	}
	names := graph.NewStringTable()
	nameID := names.Add("Equator Avenue")
	var edges []graph.NodeBasedEdge
	for i := uint32(0); i < 2; i++ {
		edges = append(edges,
			graph.NodeBasedEdge{Source: i, Target: i + 1, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
			graph.NodeBasedEdge{Source: i + 1, Target: i, WeightDs: 1000, DistanceDm: 10000, NameID: nameID},
		)
	}
	nb := graph.BuildNodeBased(3, coords, []int64{1, 2, 3}, edges, nil, nil, nil, names)

	eb := expand.Expand(graph.Compress(nb), quietProfile{}, zerolog.Nop())
	qg := ch.Contract(eb, ch.Config{Workers: 1}, zerolog.Nop())
	ds := &routing.Dataset{
		QueryGraph:  qg,
		Nodes:       eb.Nodes,
		Annotations: eb.Annotations,
		Geometry:    eb.Geometry,
		Coords:      eb.Coords,
		Names:       eb.Names,
		Checksum:    7,
		Timestamp:   "api-test",
	}
	store := datastore.New(&datastore.Entry{Engine: routing.NewEngine(ds, zerolog.Nop())})

	cfg := config.DefaultServer()
	cfg.MaxConcurrent = 4
	handlers := NewHandlers(store, 5*time.Second, false, zerolog.Nop())
	return NewRouter(cfg, handlers, zerolog.Nop())
}

func postRoute(t *testing.T, h http.Handler, req RouteRequest) (*httptest.ResponseRecorder, RouteResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/route", bytes.NewReader(body)))

	var resp RouteResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHandleRouteOk(t *testing.T) {
	h := testHandler(t)

	lon := func(m float64) float64 { return m / 111_319.49 }
	rec, resp := postRoute(t, h, RouteRequest{
		Coordinates:  [][2]float64{{0, 0}, {0, lon(2000)}},
		Instructions: true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", resp.Code)
	assert.InDelta(t, 2000.0, resp.DistanceMeters, 2.0)
	assert.InDelta(t, 200.0, resp.DurationSec, 0.5)

	encoded, ok := resp.Geometry.(string)
	require.True(t, ok, "default geometry is a polyline string")
	decoded := geo.DecodePolyline5(encoded)
	assert.NotEmpty(t, decoded)

	require.NotEmpty(t, resp.Instructions)
	assert.Equal(t, "head on", resp.Instructions[0].Instruction)
	assert.Equal(t, "destination", resp.Instructions[len(resp.Instructions)-1].Instruction)
	assert.Len(t, resp.Hints, 2)
}

func TestHandleRouteGeoJSON(t *testing.T) {
	h := testHandler(t)

	lon := func(m float64) float64 { return m / 111_319.49 }
	rec, _ := postRoute(t, h, RouteRequest{
		Coordinates: [][2]float64{{0, 0}, {0, lon(2000)}},
		Geometry:    "geojson",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var raw struct {
		Geometry GeoJSONLineString `json:"geometry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "LineString", raw.Geometry.Type)
	assert.GreaterOrEqual(t, len(raw.Geometry.Coordinates), 2)
}

func TestHandleRouteNoRoute(t *testing.T) {
	h := testHandler(t)

	// A single coordinate is a well-formed NoRoute, not an error.
	rec, resp := postRoute(t, h, RouteRequest{Coordinates: [][2]float64{{0, 0}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NoRoute", resp.Code)
}

func TestHandleRouteNoSegment(t *testing.T) {
	h := testHandler(t)

	rec, resp := postRoute(t, h, RouteRequest{
		Coordinates: [][2]float64{{0, 0}, {45, 100}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NoSegment", resp.Code)
}

func TestHandleRouteBadRequests(t *testing.T) {
	h := testHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/route", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = postRoute(t, h, RouteRequest{Coordinates: [][2]float64{{91, 0}, {0, 0}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = postRoute(t, h, RouteRequest{
		Coordinates: [][2]float64{{0, 0}, {0, 0.01}},
		Metric:      "no_such_metric",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthAndStats(t *testing.T) {
	h := testHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "api-test", stats.Timestamp)
	assert.NotZero(t, stats.Nodes)
}
