package distance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/models"
)

// ErrNoWaypoints is returned when a model is requested for an empty waypoint list
var ErrNoWaypoints = errors.New("at least one waypoint is required")

// Model holds the pairwise distances of one routing problem. Waypoints occupy
// indices 0..N-1 of the underlying symmetric matrix, the start anchor index N
// and the end anchor index N+1.
type Model struct {
	waypoints []models.Coordinates
	start     models.Coordinates
	end       models.Coordinates
	n         int
	dist      *mat.SymDense
}

type modelOptions struct {
	cache    database.DistanceCacheRepository
	provider string
	workers  int
}

// ModelOption configures NewModel
type ModelOption func(*modelOptions)

// WithCache looks pairs up in the distance cache and stores the ones computed.
// provider must name the Func passed to NewModel, see ProviderName.
func WithCache(cache database.DistanceCacheRepository, provider string) ModelOption {
	return func(o *modelOptions) {
		o.cache = cache
		o.provider = provider
	}
}

// WithWorkers bounds the number of goroutines filling the matrix
func WithWorkers(n int) ModelOption {
	return func(o *modelOptions) { o.workers = n }
}

// NewModel computes every pairwise distance between the waypoints and the
// start/end anchors.
func NewModel(ctx context.Context, waypoints []models.Coordinates, start, end models.Coordinates, fn Func, opts ...ModelOption) (*Model, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}
	if fn == nil {
		fn = Vincenty
	}

	o := modelOptions{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	buildStart := time.Now()
	n := len(waypoints)
	size := n + 2
	points := make([]models.Coordinates, 0, size)
	points = append(points, waypoints...)
	points = append(points, start, end)

	data := make([]float64, size*size)
	known := make([]bool, size*size)

	if o.cache != nil {
		hits, err := loadCached(ctx, o.cache, o.provider, points, data, known)
		if err != nil {
			return nil, err
		}
		log.Printf("[DISTANCE] Cache lookup: provider=%s pairs=%d hits=%d", o.provider, size*(size-1)/2, hits)
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < size; j++ {
					if known[i*size+j] {
						continue
					}
					data[i*size+j] = fn(points[i], points[j])
				}
			}
		}()
	}

	var cancelled error
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		rows <- i
	}
	close(rows)
	wg.Wait()
	if cancelled != nil {
		return nil, cancelled
	}

	if o.cache != nil {
		if err := storeComputed(ctx, o.cache, o.provider, points, data, known); err != nil {
			// the matrix is complete; a failed cache write only costs a later recompute
			log.Printf("[ERROR] Failed to store distances in cache: %v", err)
		}
	}

	// mirror the upper triangle so the backing slice is a full matrix
	for i := 0; i < size; i++ {
		data[i*size+i] = 0
		for j := i + 1; j < size; j++ {
			data[j*size+i] = data[i*size+j]
		}
	}

	log.Printf("[TIMING] Distance matrix %dx%d: %v", size, size, time.Since(buildStart))

	return &Model{
		waypoints: append([]models.Coordinates(nil), waypoints...),
		start:     start,
		end:       end,
		n:         n,
		dist:      mat.NewSymDense(size, data),
	}, nil
}

func loadCached(ctx context.Context, cache database.DistanceCacheRepository, provider string, points []models.Coordinates, data []float64, known []bool) (int, error) {
	size := len(points)
	pairs := make([]database.CoordinatePair, 0, size*(size-1)/2)
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			pairs = append(pairs, database.CoordinatePair{Provider: provider, Origin: points[i], Dest: points[j]})
		}
	}

	cached, err := cache.GetBatch(ctx, pairs)
	if err != nil {
		return 0, fmt.Errorf("failed to read distance cache: %w", err)
	}

	hits := 0
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			entry, ok := cached[database.CacheKey(provider, points[i], points[j])]
			if !ok {
				continue
			}
			data[i*size+j] = entry.DistanceKm
			known[i*size+j] = true
			hits++
		}
	}
	return hits, nil
}

func storeComputed(ctx context.Context, cache database.DistanceCacheRepository, provider string, points []models.Coordinates, data []float64, known []bool) error {
	size := len(points)
	var entries []models.DistanceCacheEntry
	seen := make(map[string]bool)
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if known[i*size+j] {
				continue
			}
			key := database.CacheKey(provider, points[i], points[j])
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, models.DistanceCacheEntry{
				Provider:    provider,
				Origin:      points[i],
				Destination: points[j],
				DistanceKm:  data[i*size+j],
			})
		}
	}
	if len(entries) == 0 {
		return nil
	}
	log.Printf("[DISTANCE] Caching %d computed distances", len(entries))
	return cache.SetBatch(ctx, entries)
}

// N returns the number of waypoints
func (m *Model) N() int {
	return m.n
}

// Distance returns the distance between waypoints i and j
func (m *Model) Distance(i, j int) float64 {
	return m.dist.At(i, j)
}

// FromStart returns the distance from the start anchor to waypoint i
func (m *Model) FromStart(i int) float64 {
	return m.dist.At(m.n, i)
}

// ToEnd returns the distance from waypoint i to the end anchor
func (m *Model) ToEnd(i int) float64 {
	return m.dist.At(i, m.n+1)
}

// Matrix returns the symmetric distance matrix including both anchors
func (m *Model) Matrix() *mat.SymDense {
	return m.dist
}

// RouteCost returns the length of start -> route... -> end. An empty route
// costs the direct start to end leg.
func (m *Model) RouteCost(route []int) float64 {
	if len(route) == 0 {
		return m.dist.At(m.n, m.n+1)
	}
	total := m.FromStart(route[0])
	for i := 0; i+1 < len(route); i++ {
		total += m.dist.At(route[i], route[i+1])
	}
	return total + m.ToEnd(route[len(route)-1])
}

// Path returns the coordinates visited by a route including both anchors
func (m *Model) Path(route []int) []models.Coordinates {
	path := make([]models.Coordinates, 0, len(route)+2)
	path = append(path, m.start)
	for _, idx := range route {
		path = append(path, m.waypoints[idx])
	}
	return append(path, m.end)
}

// RouteLength sums fn over start -> points... -> end
func RouteLength(fn Func, points []models.Coordinates, start, end models.Coordinates) float64 {
	if len(points) == 0 {
		return fn(start, end)
	}
	total := fn(start, points[0])
	for i := 0; i+1 < len(points); i++ {
		total += fn(points[i], points[i+1])
	}
	return total + fn(points[len(points)-1], end)
}
