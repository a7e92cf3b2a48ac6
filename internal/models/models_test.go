package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinatesIsValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: -6.2, Lng: 106.8}.IsValid())
	assert.True(t, Coordinates{Lat: 90, Lng: -180}.IsValid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.IsValid())
	assert.False(t, Coordinates{Lat: 0, Lng: 180.5}.IsValid())
	assert.False(t, Coordinates{Lat: math.NaN(), Lng: 0}.IsValid())
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 40.71281, RoundCoordinate(40.712814))
	assert.Equal(t, -74.00600, RoundCoordinate(-74.006001))
}

func TestWaypointLabel(t *testing.T) {
	w := Waypoint{Name: "Toko Sejahtera", District: "Menteng", City: "Jakarta"}
	assert.Equal(t, "Toko Sejahtera", w.Label())

	w.Name = ""
	assert.Equal(t, "Menteng", w.Label())

	w.District = ""
	assert.Equal(t, "Jakarta", w.Label())
}

func TestDatasetCoordinates(t *testing.T) {
	d := Dataset{Waypoints: []Waypoint{
		{ID: 0, Coords: Coordinates{Lat: 1, Lng: 2}},
		{ID: 1, Coords: Coordinates{Lat: 3, Lng: 4}},
	}}

	coords := d.Coordinates()

	assert.Equal(t, []Coordinates{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}, coords)
}

func TestOptimizationResultImprovement(t *testing.T) {
	r := OptimizationResult{DistanceKm: 75, BaselineKm: 100}
	assert.InDelta(t, 25.0, r.Improvement(), 1e-9)

	r.BaselineKm = 0
	assert.Equal(t, 0.0, r.Improvement())
}
