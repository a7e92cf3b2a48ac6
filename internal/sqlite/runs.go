package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/models"
)

type runRepository struct {
	store *Store
}

const runColumns = `id, dataset_name, algorithm, params, route, stop_names, path, distance_km,
	baseline_km, waypoint_count, elapsed_ms, seed, start_lat, start_lng, end_lat, end_lng, created_at`

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run       models.Run
		route     string
		stopNames string
		path      string
	)
	err := row.Scan(
		&run.ID, &run.DatasetName, &run.Algorithm, &run.Params, &route, &stopNames, &path, &run.DistanceKm,
		&run.BaselineKm, &run.WaypointCount, &run.ElapsedMs, &run.Seed,
		&run.Start.Lat, &run.Start.Lng, &run.End.Lat, &run.End.Lng, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(route), &run.Route); err != nil {
		return nil, fmt.Errorf("failed to decode route of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(stopNames), &run.StopNames); err != nil {
		return nil, fmt.Errorf("failed to decode stop names of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(path), &run.Path); err != nil {
		return nil, fmt.Errorf("failed to decode path of run %s: %w", run.ID, err)
	}
	return &run, nil
}

func (r *runRepository) List(ctx context.Context, limit, offset int) ([]models.Run, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `SELECT ` + runColumns + `
	          FROM runs
	          ORDER BY created_at DESC, id
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, total, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	run, err := scanRun(r.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *runRepository) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	route, err := json.Marshal(run.Route)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route: %w", err)
	}
	stopNames, err := json.Marshal(run.StopNames)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stop names: %w", err)
	}
	path, err := json.Marshal(run.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to encode path: %w", err)
	}
	if run.Params == "" {
		run.Params = "{}"
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO runs (` + runColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.store.db.ExecContext(ctx, query,
		run.ID, run.DatasetName, run.Algorithm, run.Params, string(route), string(stopNames), string(path), run.DistanceKm,
		run.BaselineKm, run.WaypointCount, run.ElapsedMs, run.Seed,
		run.Start.Lat, run.Start.Lng, run.End.Lat, run.End.Lng, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

func (r *runRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}
	return nil
}
