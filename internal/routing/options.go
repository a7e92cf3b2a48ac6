package routing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
)

type options struct {
	geodesic  distance.Func
	model     *distance.Model
	progress  ProgressFunc
	modelOpts []distance.ModelOption
}

// Option configures a solver
type Option func(*options)

// WithGeodesic replaces the default Vincenty distance
func WithGeodesic(fn distance.Func) Option {
	return func(o *options) { o.geodesic = fn }
}

// WithModel reuses a distance model that was already built for the problem
func WithModel(m *distance.Model) Option {
	return func(o *options) { o.model = m }
}

// WithProgress registers a per-iteration callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithDistanceOptions passes options (such as a cache) to the model build
func WithDistanceOptions(opts ...distance.ModelOption) Option {
	return func(o *options) { o.modelOpts = append(o.modelOpts, opts...) }
}

func buildOptions(opts []Option) options {
	o := options{geodesic: distance.Vincenty}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) buildModel(ctx context.Context, p Problem) (*distance.Model, error) {
	if o.model != nil {
		if o.model.N() != len(p.Waypoints) {
			return nil, &ErrInvalidConfig{
				Field:  "model",
				Reason: fmt.Sprintf("has %d waypoints, problem has %d", o.model.N(), len(p.Waypoints)),
			}
		}
		return o.model, nil
	}
	m, err := distance.NewModel(ctx, p.Waypoints, p.Start, p.End, o.geodesic, o.modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build distance model: %w", err)
	}
	return m, nil
}

// runSummary is what every solver hands to finish
type runSummary struct {
	algorithm  Algorithm
	route      []int
	cost       float64
	// baseline is the greedy route when the solver already built it
	baseline   []int
	iterations int
	seed       int64
	history    []models.ProgressEvent
	started    time.Time
}

func finish(m *distance.Model, s runSummary) *models.OptimizationResult {
	greedy := s.baseline
	if greedy == nil {
		greedy = nearestNeighborRoute(m)
	}
	baseline := m.RouteCost(greedy)
	elapsed := time.Since(s.started)
	log.Printf("[%s] Complete: waypoints=%d distance=%.3fkm baseline=%.3fkm iterations=%d",
		logTag(s.algorithm), m.N(), s.cost, baseline, s.iterations)
	log.Printf("[TIMING] %s: %v", s.algorithm, elapsed)

	return &models.OptimizationResult{
		Algorithm:  string(s.algorithm),
		Route:      s.route,
		DistanceKm: s.cost,
		BaselineKm: baseline,
		Iterations: s.iterations,
		Seed:       s.seed,
		Elapsed:    elapsed,
		History:    s.history,
		Path:       m.Path(s.route),
	}
}

func logTag(a Algorithm) string {
	switch a {
	case AlgorithmGenetic:
		return "GA"
	case AlgorithmNearestNeighbor:
		return "NN"
	}
	return strings.ToUpper(string(a))
}

// rankByCost returns slot indices ordered by ascending cost. Ties keep slot order.
func rankByCost(costs []float64) []int {
	order := make([]int, len(costs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return costs[order[a]] < costs[order[b]]
	})
	return order
}

func cloneRoute(route []int) []int {
	return append([]int(nil), route...)
}

func reverse(route []int, i, j int) {
	for i < j {
		route[i], route[j] = route[j], route[i]
		i++
		j--
	}
}
