package distance

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-optimizer/internal/models"
	"waypoint-optimizer/internal/testutil"
)

func TestHaversineOneDegreeAtEquator(t *testing.T) {
	d := Haversine(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 0, Lng: 1})
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, d, 1e-9)
}

func TestVincentyKnownDistance(t *testing.T) {
	// Flinders Peak to Buninyong, the reference case from Vincenty's paper
	flinders := models.Coordinates{Lat: -37.951033416666665, Lng: 144.42486788888888}
	buninyong := models.Coordinates{Lat: -37.65282113888889, Lng: 143.92649552777777}

	assert.InDelta(t, 54.972271, Vincenty(flinders, buninyong), 1e-3)
}

func TestGeodesicSymmetricAndNonNegative(t *testing.T) {
	points := testutil.RandomWaypoints(20, 7)
	for _, fn := range []Func{Haversine, Vincenty} {
		for i := range points {
			for j := range points {
				d1 := fn(points[i], points[j])
				d2 := fn(points[j], points[i])
				assert.GreaterOrEqual(t, d1, 0.0)
				assert.InDelta(t, d1, d2, 1e-9)
			}
			assert.Equal(t, 0.0, fn(points[i], points[i]))
		}
	}
}

func TestVincentyAntipodalFallsBack(t *testing.T) {
	d := Vincenty(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 0.5, Lng: 179.7})
	assert.False(t, math.IsNaN(d))
	assert.Greater(t, d, 19000.0)
}

func TestByName(t *testing.T) {
	fn, err := ByName("haversine")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	fn, err = ByName("")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = ByName("manhattan")
	assert.Error(t, err)
}

func TestNewModelRejectsEmpty(t *testing.T) {
	_, err := NewModel(context.Background(), nil, models.Coordinates{}, models.Coordinates{}, testutil.Euclidean)
	assert.ErrorIs(t, err, ErrNoWaypoints)
}

func TestModelMatrixSymmetricZeroDiagonal(t *testing.T) {
	points := testutil.RandomWaypoints(15, 3)
	start := models.Coordinates{Lat: -6.2, Lng: 106.8}
	end := models.Coordinates{Lat: -6.1, Lng: 106.9}

	m, err := NewModel(context.Background(), points, start, end, Haversine, WithWorkers(4))
	require.NoError(t, err)

	require.Equal(t, 15, m.N())
	for i := 0; i < m.N(); i++ {
		assert.Equal(t, 0.0, m.Distance(i, i))
		for j := 0; j < m.N(); j++ {
			assert.Equal(t, m.Distance(i, j), m.Distance(j, i))
			assert.InDelta(t, Haversine(points[i], points[j]), m.Distance(i, j), 1e-9)
		}
		assert.InDelta(t, Haversine(start, points[i]), m.FromStart(i), 1e-9)
		assert.InDelta(t, Haversine(points[i], end), m.ToEnd(i), 1e-9)
	}
}

func TestRouteCostSquare(t *testing.T) {
	origin := models.Coordinates{}
	m, err := NewModel(context.Background(), testutil.SquareWaypoints(), origin, origin, testutil.Euclidean)
	require.NoError(t, err)

	assert.InDelta(t, 4*math.Sqrt2, m.RouteCost([]int{0, 1, 2, 3}), 1e-9)
	assert.InDelta(t, 4*math.Sqrt2, m.RouteCost([]int{3, 2, 1, 0}), 1e-9)
	assert.InDelta(t, 4+2*math.Sqrt2, m.RouteCost([]int{0, 2, 1, 3}), 1e-9)
}

func TestRouteCostReversalSymmetricWhenAnchorsCoincide(t *testing.T) {
	points := testutil.RandomWaypoints(10, 11)
	anchor := models.Coordinates{Lat: -6.0, Lng: 107.0}
	m, err := NewModel(context.Background(), points, anchor, anchor, Vincenty)
	require.NoError(t, err)

	route := []int{4, 2, 9, 0, 1, 7, 3, 8, 5, 6}
	reversed := make([]int, len(route))
	for i, v := range route {
		reversed[len(route)-1-i] = v
	}

	assert.InDelta(t, m.RouteCost(route), m.RouteCost(reversed), 1e-9)
	assert.GreaterOrEqual(t, m.RouteCost(route), 0.0)
}

func TestRouteCostSingleWaypoint(t *testing.T) {
	anchor := models.Coordinates{Lat: 0, Lng: 0}
	m, err := NewModel(context.Background(), []models.Coordinates{{Lat: 3, Lng: 4}}, anchor, anchor, testutil.Euclidean)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, m.RouteCost([]int{0}), 1e-9)
}

func TestRouteLengthMatchesModel(t *testing.T) {
	points := testutil.SquareWaypoints()
	start := models.Coordinates{Lat: -1, Lng: 0}
	end := models.Coordinates{Lat: 3, Lng: 0}
	m, err := NewModel(context.Background(), points, start, end, testutil.Euclidean)
	require.NoError(t, err)

	route := []int{0, 3, 2, 1}
	assert.InDelta(t, m.RouteCost(route), RouteLength(testutil.Euclidean, m.Path(route)[1:5], start, end), 1e-9)
}

func TestModelPathIncludesAnchors(t *testing.T) {
	start := models.Coordinates{Lat: 9, Lng: 9}
	end := models.Coordinates{Lat: 8, Lng: 8}
	m, err := NewModel(context.Background(), testutil.SquareWaypoints(), start, end, testutil.Euclidean)
	require.NoError(t, err)

	path := m.Path([]int{2, 0})

	assert.Equal(t, []models.Coordinates{start, {Lat: 2, Lng: 0}, {Lat: 0, Lng: 0}, end}, path)
}

func TestNewModelUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := testutil.NewMockDistanceCache()
	counter := &testutil.CountingDistance{}
	points := testutil.RandomWaypoints(6, 5)
	start := models.Coordinates{Lat: -6.3, Lng: 106.7}

	first, err := NewModel(ctx, points, start, start, counter.Func, WithCache(cache, "counting"))
	require.NoError(t, err)
	computed := counter.Calls()
	assert.Greater(t, computed, int64(0))

	count, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	second, err := NewModel(ctx, points, start, start, counter.Func, WithCache(cache, "counting"))
	require.NoError(t, err)
	assert.Equal(t, computed, counter.Calls(), "second build should be served from cache")

	route := []int{0, 1, 2, 3, 4, 5}
	assert.InDelta(t, first.RouteCost(route), second.RouteCost(route), 1e-4)
}

func TestNewModelKeepsProvidersApart(t *testing.T) {
	ctx := context.Background()
	cache := testutil.NewMockDistanceCache()
	points := testutil.RandomWaypoints(5, 9)
	start := models.Coordinates{Lat: -6.3, Lng: 106.7}

	_, err := NewModel(ctx, points, start, start, Vincenty, WithCache(cache, ProviderVincenty))
	require.NoError(t, err)

	second, err := NewModel(ctx, points, start, start, Haversine, WithCache(cache, ProviderHaversine))
	require.NoError(t, err)

	assert.InDelta(t, Haversine(points[0], points[1]), second.Distance(0, 1), 1e-9)
	assert.InDelta(t, Haversine(start, points[2]), second.FromStart(2), 1e-9)
	assert.NotEqual(t, Vincenty(points[0], points[1]), second.Distance(0, 1))
}

func TestNewModelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewModel(ctx, testutil.RandomWaypoints(5, 1), models.Coordinates{}, models.Coordinates{}, testutil.Euclidean)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoogleMapsURL(t *testing.T) {
	path := []models.Coordinates{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}, {Lat: 5, Lng: 6}}

	u := GoogleMapsURL(path)

	assert.True(t, strings.HasPrefix(u, "https://www.google.com/maps/dir/?"))
	assert.Contains(t, u, "origin=1.000000%2C2.000000")
	assert.Contains(t, u, "destination=5.000000%2C6.000000")
	assert.Contains(t, u, "waypoints=3.000000%2C4.000000")
	assert.Empty(t, GoogleMapsURL(path[:1]))
}
