package routing

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
)

// minDistance replaces zero distances in the visibility term
const minDistance = 1e-10

// ACO is an ant colony solver. Pheromone lives on directed waypoint-to-waypoint
// edges; the first step from the start anchor is guided by distance alone.
type ACO struct {
	problem Problem
	params  ACOParams
	opts    options
}

// NewACO validates the problem and parameters
func NewACO(problem Problem, params ACOParams, opts ...Option) (*ACO, error) {
	if err := problem.validate(); err != nil {
		return nil, err
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	return &ACO{problem: problem, params: params, opts: buildOptions(opts)}, nil
}

// colony is the state of one run. Ants only read it while constructing tours.
type colony struct {
	model     *distance.Model
	pheromone *mat.Dense
	// visibility[i][j] = (1/d(i,j))^beta
	visibility *mat.Dense
	// fromStart[j] = (1/d(start,j))^beta
	fromStart []float64
	alpha     float64
}

// Optimize runs the colony for the configured number of iterations
func (s *ACO) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	result, _, err := s.optimize(ctx)
	return result, err
}

func (s *ACO) optimize(ctx context.Context) (*models.OptimizationResult, *colony, error) {
	started := time.Now()
	p := s.params
	seed := effectiveSeed(p.Seed)

	model, err := s.opts.buildModel(ctx, s.problem)
	if err != nil {
		return nil, nil, err
	}
	n := model.N()
	log.Printf("[ACO] Starting: waypoints=%d ants=%d best=%d iterations=%d decay=%.3f alpha=%.2f beta=%.2f",
		n, p.Ants, p.Best, p.Iterations, p.Decay, p.Alpha, p.Beta)

	c := newColony(model, p.Alpha, p.Beta)
	streams := newStreams(seed, p.Ants)
	workers := workerCount(p.Workers)
	track := newTracker(s.opts.progress, p.Iterations)

	tours := make([][]int, p.Ants)
	costs := make([]float64, p.Ants)
	var bestRoute []int
	bestCost := math.Inf(1)

	for iter := 0; iter < p.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		parallelFor(workers, p.Ants, func(k int) {
			tours[k] = c.construct(streams[k], tours[k])
			costs[k] = model.RouteCost(tours[k])
		})

		order := rankByCost(costs)
		c.evaporate(p.Decay)
		for _, k := range order[:p.Best] {
			c.deposit(tours[k], costs[k], p.WrapAround)
		}

		if costs[order[0]] < bestCost {
			bestCost = costs[order[0]]
			bestRoute = cloneRoute(tours[order[0]])
		}
		track.record(iter, costs, bestCost)
	}

	return finish(model, runSummary{
		algorithm:  AlgorithmACO,
		route:      bestRoute,
		cost:       bestCost,
		iterations: p.Iterations,
		seed:       seed,
		history:    track.history,
		started:    started,
	}), c, nil
}

func newColony(m *distance.Model, alpha, beta float64) *colony {
	n := m.N()

	initial := make([]float64, n*n)
	for i := range initial {
		initial[i] = 1 / float64(n)
	}

	visibility := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				visibility.Set(i, j, math.Pow(1/math.Max(m.Distance(i, j), minDistance), beta))
			}
		}
	}

	fromStart := make([]float64, n)
	for j := range fromStart {
		fromStart[j] = math.Pow(1/math.Max(m.FromStart(j), minDistance), beta)
	}

	return &colony{
		model:      m,
		pheromone:  mat.NewDense(n, n, initial),
		visibility: visibility,
		fromStart:  fromStart,
		alpha:      alpha,
	}
}

// construct builds one ant's tour, reusing buf when it has capacity
func (c *colony) construct(rng *rand.Rand, buf []int) []int {
	n := c.model.N()
	route := buf[:0]
	visited := make([]bool, n)
	weights := make([]float64, n)

	current := -1
	for step := 0; step < n; step++ {
		total := 0.0
		for j := 0; j < n; j++ {
			if visited[j] {
				weights[j] = 0
				continue
			}
			var w float64
			if current < 0 {
				w = c.fromStart[j]
			} else {
				w = math.Pow(c.pheromone.At(current, j), c.alpha) * c.visibility.At(current, j)
			}
			weights[j] = w
			total += w
		}

		next := roulette(rng, weights, visited, total)
		visited[next] = true
		route = append(route, next)
		current = next
	}
	return route
}

// roulette draws an unvisited index proportionally to its weight. Degenerate
// totals (zero, NaN or infinite) fall back to a uniform draw.
func roulette(rng *rand.Rand, weights []float64, visited []bool, total float64) int {
	if !(total > 0) || math.IsInf(total, 1) {
		remaining := 0
		for _, v := range visited {
			if !v {
				remaining++
			}
		}
		pick := rng.Intn(remaining)
		for j, v := range visited {
			if v {
				continue
			}
			if pick == 0 {
				return j
			}
			pick--
		}
	}

	r := rng.Float64() * total
	acc := 0.0
	last := -1
	for j, w := range weights {
		if visited[j] {
			continue
		}
		acc += w
		last = j
		if r < acc {
			return j
		}
	}
	// rounding left r at the very top of the range
	return last
}

func (c *colony) evaporate(decay float64) {
	c.pheromone.Scale(decay, c.pheromone)
}

// deposit adds 1/cost to every consecutive edge of the route
func (c *colony) deposit(route []int, cost float64, wrapAround bool) {
	amount := 1 / math.Max(cost, minDistance)
	for i := 0; i+1 < len(route); i++ {
		a, b := route[i], route[i+1]
		c.pheromone.Set(a, b, c.pheromone.At(a, b)+amount)
	}
	if wrapAround && len(route) > 1 {
		a, b := route[len(route)-1], route[0]
		c.pheromone.Set(a, b, c.pheromone.At(a, b)+amount)
	}
}
