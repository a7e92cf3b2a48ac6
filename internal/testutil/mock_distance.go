package testutil

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/models"
)

// Euclidean treats coordinates as planar points. Tests use it so that expected
// route lengths can be worked out by hand.
func Euclidean(a, b models.Coordinates) float64 {
	dLat := b.Lat - a.Lat
	dLng := b.Lng - a.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// CountingDistance wraps Euclidean and records how many times it was called
type CountingDistance struct {
	calls atomic.Int64
}

// Func returns the counting distance function
func (c *CountingDistance) Func(a, b models.Coordinates) float64 {
	c.calls.Add(1)
	return Euclidean(a, b)
}

// Calls returns the number of distance evaluations so far
func (c *CountingDistance) Calls() int64 {
	return c.calls.Load()
}

// MockDistanceCache is an in-memory DistanceCacheRepository for tests
type MockDistanceCache struct {
	mu      sync.Mutex
	entries map[string]*models.DistanceCacheEntry
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{
		entries: make(map[string]*models.DistanceCacheEntry),
	}
}

func (c *MockDistanceCache) Get(ctx context.Context, provider string, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[database.CacheKey(provider, origin, dest)], nil
}

func (c *MockDistanceCache) GetBatch(ctx context.Context, pairs []database.CoordinatePair) (map[string]*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]*models.DistanceCacheEntry)
	for _, pair := range pairs {
		key := database.CacheKey(pair.Provider, pair.Origin, pair.Dest)
		if entry, ok := c.entries[key]; ok {
			result[key] = entry
		}
	}
	return result, nil
}

func (c *MockDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := *entry
	c.entries[database.CacheKey(entry.Provider, entry.Origin, entry.Destination)] = &e
	return nil
}

func (c *MockDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	for i := range entries {
		c.Set(ctx, &entries[i])
	}
	return nil
}

func (c *MockDistanceCache) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

func (c *MockDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.DistanceCacheEntry)
	return nil
}
