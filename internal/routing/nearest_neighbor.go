package routing

import (
	"context"
	"log"
	"math"
	"time"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
)

// NearestNeighbor is the greedy baseline: from the start anchor, always walk
// to the closest unvisited waypoint.
type NearestNeighbor struct {
	problem Problem
	opts    options
	twoOpt  bool
}

// NewNearestNeighbor validates the problem. With polish set the greedy route
// is improved with 2-opt.
func NewNearestNeighbor(problem Problem, polish bool, opts ...Option) (*NearestNeighbor, error) {
	if err := problem.validate(); err != nil {
		return nil, err
	}
	return &NearestNeighbor{problem: problem, opts: buildOptions(opts), twoOpt: polish}, nil
}

func (s *NearestNeighbor) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	started := time.Now()
	model, err := s.opts.buildModel(ctx, s.problem)
	if err != nil {
		return nil, err
	}
	log.Printf("[NN] Starting: waypoints=%d two_opt=%v", model.N(), s.twoOpt)

	greedy := nearestNeighborRoute(model)
	route := greedy
	if s.twoOpt {
		route = twoOpt(model, greedy)
	}
	cost := model.RouteCost(route)

	track := newTracker(s.opts.progress, 1)
	track.record(0, []float64{cost}, cost)

	return finish(model, runSummary{
		algorithm:  AlgorithmNearestNeighbor,
		route:      route,
		cost:       cost,
		baseline:   greedy,
		iterations: 1,
		history:    track.history,
		started:    started,
	}), nil
}

// nearestNeighborRoute builds the greedy route. Ties go to the lower index.
func nearestNeighborRoute(m *distance.Model) []int {
	n := m.N()
	visited := make([]bool, n)
	route := make([]int, 0, n)

	current := -1
	for len(route) < n {
		nearest := -1
		minDist := math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			var d float64
			if current < 0 {
				d = m.FromStart(j)
			} else {
				d = m.Distance(current, j)
			}
			if d < minDist {
				minDist = d
				nearest = j
			}
		}
		visited[nearest] = true
		route = append(route, nearest)
		current = nearest
	}
	return route
}
