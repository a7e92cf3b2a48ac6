package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-optimizer/internal/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SQLiteDBFileName), config.DatabasePath)
	assert.Empty(t, config.Geodesic)
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	err := SaveConfig(dir, &AppConfig{DatabasePath: "/tmp/runs.db", Geodesic: "haversine"})
	require.NoError(t, err)

	config, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", config.DatabasePath)
	assert.Equal(t, "haversine", config.Geodesic)
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	a := models.Coordinates{Lat: -6.175392, Lng: 106.827153}
	b := models.Coordinates{Lat: -6.200000, Lng: 106.816666}

	assert.Equal(t, CacheKey("vincenty", a, b), CacheKey("vincenty", b, a))
	assert.NotEqual(t, CacheKey("vincenty", a, a), CacheKey("vincenty", a, b))
	assert.NotEqual(t, CacheKey("vincenty", a, b), CacheKey("haversine", a, b))
}

func TestCanonicalPairRounds(t *testing.T) {
	a := models.Coordinates{Lat: 1.000004, Lng: 2}
	b := models.Coordinates{Lat: 0.5, Lng: 2}

	first, second := CanonicalPair(a, b)

	assert.Equal(t, 0.5, first.Lat)
	assert.Equal(t, 1.0, second.Lat)
}
