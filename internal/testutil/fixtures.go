package testutil

import (
	"golang.org/x/exp/rand"

	"waypoint-optimizer/internal/models"
)

// SquareWaypoints returns four points on a diamond around (1, 0). With the
// anchors at the origin the shortest closed tour is 4*sqrt(2).
func SquareWaypoints() []models.Coordinates {
	return []models.Coordinates{
		{Lat: 0, Lng: 0},
		{Lat: 1, Lng: 1},
		{Lat: 2, Lng: 0},
		{Lat: 1, Lng: -1},
	}
}

// RandomWaypoints returns n reproducible points inside a 1x1 degree box
// near Jakarta.
func RandomWaypoints(n int, seed uint64) []models.Coordinates {
	rng := rand.New(rand.NewSource(seed))
	points := make([]models.Coordinates, n)
	for i := range points {
		points[i] = models.Coordinates{
			Lat: -6.6 + rng.Float64(),
			Lng: 106.4 + rng.Float64(),
		}
	}
	return points
}

// IsPermutation reports whether route visits every index in 0..n-1 exactly once
func IsPermutation(route []int, n int) bool {
	if len(route) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range route {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
