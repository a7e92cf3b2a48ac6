package models

import (
	"math"
	"time"
)

// Coordinates represents a geographic point in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsValid reports whether the point lies inside the WGS-84 coordinate range
func (c Coordinates) IsValid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// RoundCoordinate rounds a coordinate to 5 decimal places (about 1.1m),
// the precision used for distance cache keys.
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Waypoint is one location the route must visit
type Waypoint struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	City     string      `json:"city,omitempty"`
	District string      `json:"district,omitempty"`
	Coords   Coordinates `json:"coords"`
}

// GetCoords returns the coordinates of the waypoint
func (w *Waypoint) GetCoords() Coordinates {
	return w.Coords
}

// Label returns a human readable name for the waypoint
func (w *Waypoint) Label() string {
	if w.Name != "" {
		return w.Name
	}
	if w.District != "" {
		return w.District
	}
	return w.City
}

// Dataset is an uploaded list of waypoints
type Dataset struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Waypoints  []Waypoint `json:"waypoints"`
	Skipped    int        `json:"skipped"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

// Coordinates returns the waypoint coordinates in dataset order
func (d *Dataset) Coordinates() []Coordinates {
	coords := make([]Coordinates, len(d.Waypoints))
	for i := range d.Waypoints {
		coords[i] = d.Waypoints[i].Coords
	}
	return coords
}

// ProgressEvent is emitted once per solver iteration
type ProgressEvent struct {
	Iteration     int     `json:"iteration"`
	BestDistance  float64 `json:"best_km"`
	IterationBest float64 `json:"iteration_best_km"`
	MeanDistance  float64 `json:"mean_km"`
	StdDev        float64 `json:"stddev_km"`
}

// OptimizationResult is the outcome of a single solver run
type OptimizationResult struct {
	Algorithm  string          `json:"algorithm"`
	Route      []int           `json:"route"`
	DistanceKm float64         `json:"distance_km"`
	BaselineKm float64         `json:"baseline_km"`
	Iterations int             `json:"iterations"`
	Seed       int64           `json:"seed"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	History    []ProgressEvent `json:"history,omitempty"`
	Path       []Coordinates   `json:"path"`
}

// Improvement returns the percentage saved against the nearest-neighbour baseline
func (r *OptimizationResult) Improvement() float64 {
	if r.BaselineKm <= 0 {
		return 0
	}
	return (r.BaselineKm - r.DistanceKm) / r.BaselineKm * 100
}

// Run is a persisted solver run
type Run struct {
	ID            string        `json:"id"`
	DatasetName   string        `json:"dataset_name"`
	Algorithm     string        `json:"algorithm"`
	Params        string        `json:"params"`
	Route         []int         `json:"route"`
	StopNames     []string      `json:"stop_names"`
	// Path holds start, stops in visiting order and end
	Path          []Coordinates `json:"path"`
	DistanceKm    float64       `json:"distance_km"`
	BaselineKm    float64       `json:"baseline_km"`
	WaypointCount int           `json:"waypoint_count"`
	ElapsedMs     int64         `json:"elapsed_ms"`
	Seed          int64         `json:"seed"`
	Start         Coordinates   `json:"start"`
	End           Coordinates   `json:"end"`
	CreatedAt     time.Time     `json:"created_at"`
}

// DistanceCacheEntry represents a cached geodesic distance
type DistanceCacheEntry struct {
	Provider    string      `json:"provider"`
	Origin      Coordinates `json:"origin"`
	Destination Coordinates `json:"destination"`
	DistanceKm  float64     `json:"distance_km"`
}
