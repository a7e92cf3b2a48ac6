package database

import (
	"context"
	"fmt"

	"waypoint-optimizer/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Runs() RunRepository
	DistanceCache() DistanceCacheRepository
}

// RunRepository handles solver run history
type RunRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Run, int, error)
	GetByID(ctx context.Context, id string) (*models.Run, error)
	Create(ctx context.Context, run *models.Run) (*models.Run, error)
	Delete(ctx context.Context, id string) error
}

// CoordinatePair is an unordered pair of points looked up in the distance cache.
// Provider names the formula the distance must have been computed with.
type CoordinatePair struct {
	Provider string
	Origin   models.Coordinates
	Dest     models.Coordinates
}

// DistanceCacheRepository handles distance cache persistence. Distances are
// symmetric so a pair is found regardless of its orientation, and entries of
// one provider never answer lookups for another.
type DistanceCacheRepository interface {
	Get(ctx context.Context, provider string, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	GetBatch(ctx context.Context, pairs []CoordinatePair) (map[string]*models.DistanceCacheEntry, error)
	Set(ctx context.Context, entry *models.DistanceCacheEntry) error
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// CanonicalPair rounds both points to cache precision and orders them so that
// (a, b) and (b, a) map to the same cache row.
func CanonicalPair(a, b models.Coordinates) (models.Coordinates, models.Coordinates) {
	a = models.Coordinates{Lat: models.RoundCoordinate(a.Lat), Lng: models.RoundCoordinate(a.Lng)}
	b = models.Coordinates{Lat: models.RoundCoordinate(b.Lat), Lng: models.RoundCoordinate(b.Lng)}
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lng < a.Lng) {
		return b, a
	}
	return a, b
}

// CacheKey returns the map key GetBatch uses for a pair
func CacheKey(provider string, a, b models.Coordinates) string {
	a, b = CanonicalPair(a, b)
	return fmt.Sprintf("%s:%.5f,%.5f<->%.5f,%.5f", provider, a.Lat, a.Lng, b.Lat, b.Lng)
}
