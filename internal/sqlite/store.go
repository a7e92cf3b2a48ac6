package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"waypoint-optimizer/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "data.db"
	// MemoryPath opens a private in-memory database
	MemoryPath    = ":memory:"
	schemaVersion = 3
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	runRepo           database.RunRepository
	distanceCacheRepo database.DistanceCacheRepository
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("[SQLITE] Opening database at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.runRepo = &runRepository{store: store}
	store.distanceCacheRepo = &distanceCacheRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// no schema_version table yet
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

// distanceCacheTable holds one row per provider and unordered pair (origin sorts first)
const distanceCacheTable = `
	CREATE TABLE IF NOT EXISTS distance_cache (
		provider TEXT NOT NULL,
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		distance_km REAL NOT NULL,
		PRIMARY KEY (provider, origin_lat, origin_lng, dest_lat, dest_lng)
	);`

func (s *Store) createSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (%d);

%s

	-- Solver runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset_name TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		params TEXT NOT NULL DEFAULT '{}',
		route TEXT NOT NULL,
		stop_names TEXT NOT NULL DEFAULT '[]',
		path TEXT NOT NULL DEFAULT '[]',
		distance_km REAL NOT NULL,
		baseline_km REAL NOT NULL DEFAULT 0,
		waypoint_count INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		seed INTEGER NOT NULL DEFAULT 0,
		start_lat REAL NOT NULL,
		start_lng REAL NOT NULL,
		end_lat REAL NOT NULL,
		end_lng REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`, schemaVersion, distanceCacheTable)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[SQLITE] Schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	if fromVersion < 2 {
		// version 1 stored runs without the nearest-neighbour baseline
		if _, err := s.db.Exec("ALTER TABLE runs ADD COLUMN baseline_km REAL NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to migrate to version 2: %w", err)
		}
	}

	if fromVersion < 3 {
		// version 2 cached distances without the formula that produced them,
		// so those rows cannot be trusted and are dropped
		steps := []string{
			"ALTER TABLE runs ADD COLUMN path TEXT NOT NULL DEFAULT '[]'",
			"DROP TABLE IF EXISTS distance_cache",
			distanceCacheTable,
		}
		for _, step := range steps {
			if _, err := s.db.Exec(step); err != nil {
				return fmt.Errorf("failed to migrate to version 3: %w", err)
			}
		}
	}

	log.Printf("[SQLITE] Migrated schema from version %d to %d", fromVersion, schemaVersion)
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Runs() database.RunRepository                    { return s.runRepo }
func (s *Store) DistanceCache() database.DistanceCacheRepository { return s.distanceCacheRepo }
