package api

// RouteRequest is the JSON body for POST /route.
type RouteRequest struct {
	// Coordinates are [lat, lon] pairs, at least two.
	Coordinates [][2]float64 `json:"coordinates"`

	// Bearings constrain snapping per coordinate; entries may be null.
	Bearings []*BearingJSON `json:"bearings,omitempty"`

	// UTurns allows reversing on the snapped edge, per coordinate.
	UTurns []bool `json:"uturns,omitempty"`

	// Hints are opaque snap tokens from a previous response.
	Hints []string `json:"hints,omitempty"`

	// Geometry selects the format: polyline (default), polyline6,
	// geojson, or none.
	Geometry string `json:"geometry,omitempty"`

	Instructions bool `json:"instructions,omitempty"`

	// Zoom controls simplification; 19 and above returns the full
	// geometry.
	Zoom *uint `json:"zoom,omitempty"`

	// Metric names a per-metric filter, e.g. "no_ferry".
	Metric string `json:"metric,omitempty"`
}

// BearingJSON is a per-coordinate bearing window.
type BearingJSON struct {
	Value     float64 `json:"value"`
	Tolerance float64 `json:"tolerance"`
}

// RouteResponse is the JSON result. Code is "Ok" on success; NoRoute
// and NoSegment are well-formed responses, not transport errors.
type RouteResponse struct {
	Code           string          `json:"code"`
	DistanceMeters float64         `json:"distance_meters,omitempty"`
	DurationSec    float64         `json:"duration_seconds,omitempty"`
	Geometry       any             `json:"geometry,omitempty"`
	Instructions   []StepJSON      `json:"instructions,omitempty"`
	Hints          []string        `json:"hints,omitempty"`
}

// StepJSON is one guidance instruction.
type StepJSON struct {
	Instruction    string     `json:"instruction"`
	Name           string     `json:"name,omitempty"`
	Location       [2]float64 `json:"location"`
	DistanceMeters float64    `json:"distance_meters"`
	DurationSec    float64    `json:"duration_seconds"`
}

// GeoJSONLineString is the geojson geometry variant.
type GeoJSONLineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// StatsResponse is the JSON body for GET /stats.
type StatsResponse struct {
	Nodes     uint32   `json:"nodes"`
	Edges     int      `json:"edges"`
	CoreNodes uint32   `json:"core_nodes"`
	Metrics   []string `json:"metrics,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// HealthResponse is the JSON body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReloadRequest is the JSON body for POST /admin/reload.
type ReloadRequest struct {
	Base string `json:"base"`
}
