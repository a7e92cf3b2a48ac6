package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/models"
)

type distanceCacheRepository struct {
	store *Store
}

const (
	selectDistanceQuery = `SELECT provider, origin_lat, origin_lng, dest_lat, dest_lng, distance_km
	          FROM distance_cache
	          WHERE provider = ? AND origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`
	upsertDistanceQuery = `INSERT OR REPLACE INTO distance_cache
	          (provider, origin_lat, origin_lng, dest_lat, dest_lng, distance_km)
	          VALUES (?, ?, ?, ?, ?, ?)`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDistance(row rowScanner) (*models.DistanceCacheEntry, error) {
	var entry models.DistanceCacheEntry
	err := row.Scan(
		&entry.Provider,
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&entry.DistanceKm,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *distanceCacheRepository) Get(ctx context.Context, provider string, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, b := database.CanonicalPair(origin, dest)
	entry, err := scanDistance(r.store.db.QueryRowContext(ctx, selectDistanceQuery, provider, a.Lat, a.Lng, b.Lat, b.Lng))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distance cache entry: %w", err)
	}
	return entry, nil
}

func (r *distanceCacheRepository) GetBatch(ctx context.Context, pairs []database.CoordinatePair) (map[string]*models.DistanceCacheEntry, error) {
	result := make(map[string]*models.DistanceCacheEntry)
	if len(pairs) == 0 {
		return result, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stmt, err := r.store.db.PrepareContext(ctx, selectDistanceQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch query: %w", err)
	}
	defer stmt.Close()

	for _, pair := range pairs {
		a, b := database.CanonicalPair(pair.Origin, pair.Dest)
		entry, err := scanDistance(stmt.QueryRowContext(ctx, pair.Provider, a.Lat, a.Lng, b.Lat, b.Lng))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query batch entry: %w", err)
		}
		result[database.CacheKey(pair.Provider, pair.Origin, pair.Dest)] = entry
	}

	return result, nil
}

func (r *distanceCacheRepository) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, b := database.CanonicalPair(entry.Origin, entry.Destination)
	if _, err := r.store.db.ExecContext(ctx, upsertDistanceQuery, entry.Provider, a.Lat, a.Lng, b.Lat, b.Lng, entry.DistanceKm); err != nil {
		return fmt.Errorf("failed to set distance cache entry: %w", err)
	}
	return nil
}

func (r *distanceCacheRepository) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertDistanceQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		a, b := database.CanonicalPair(entry.Origin, entry.Destination)
		if _, err := stmt.ExecContext(ctx, entry.Provider, a.Lat, a.Lng, b.Lat, b.Lng, entry.DistanceKm); err != nil {
			return fmt.Errorf("failed to insert batch entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *distanceCacheRepository) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM distance_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distance cache: %w", err)
	}
	return n, nil
}

func (r *distanceCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM distance_cache"); err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}
	return nil
}
