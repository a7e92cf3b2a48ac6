package routing

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"waypoint-optimizer/internal/models"
)

const defaultTournamentSize = 5

// Genetic evolves a population of permutations with elitism, tournament
// selection, ordered crossover and inversion mutation. The final best route is
// optionally polished with 2-opt.
type Genetic struct {
	problem Problem
	params  GAParams
	opts    options
}

// NewGenetic validates the problem and parameters
func NewGenetic(problem Problem, params GAParams, opts ...Option) (*Genetic, error) {
	if err := problem.validate(); err != nil {
		return nil, err
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if params.TournamentSize == 0 {
		params.TournamentSize = defaultTournamentSize
	}
	return &Genetic{problem: problem, params: params, opts: buildOptions(opts)}, nil
}

// fitness of a route; shorter routes are fitter
func fitness(cost float64) float64 {
	return 1 / math.Max(cost, minDistance)
}

// Optimize runs the configured number of generations
func (s *Genetic) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	started := time.Now()
	p := s.params
	seed := effectiveSeed(p.Seed)

	model, err := s.opts.buildModel(ctx, s.problem)
	if err != nil {
		return nil, err
	}
	n := model.N()
	log.Printf("[GA] Starting: waypoints=%d pop=%d elite=%d mutation=%.3f generations=%d two_opt=%v",
		n, p.PopSize, p.EliteSize, p.MutationRate, p.Generations, p.TwoOpt)

	rng := newStream(seed, masterStream)
	workers := workerCount(p.Workers)
	track := newTracker(s.opts.progress, p.Generations)

	population := make([][]int, p.PopSize)
	for i := range population {
		population[i] = rng.Perm(n)
	}
	costs := make([]float64, p.PopSize)
	evaluate := func() {
		parallelFor(workers, len(population), func(i int) {
			costs[i] = model.RouteCost(population[i])
		})
	}
	evaluate()

	best := rankByCost(costs)[0]
	bestRoute := cloneRoute(population[best])
	bestCost := costs[best]

	for gen := 0; gen < p.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		population = s.nextGeneration(rng, population, costs)
		evaluate()

		if top := rankByCost(costs)[0]; costs[top] < bestCost {
			bestCost = costs[top]
			bestRoute = cloneRoute(population[top])
		}
		track.record(gen, costs, bestCost)
	}

	if p.TwoOpt {
		phase := time.Now()
		polished := twoOpt(model, bestRoute)
		if c := model.RouteCost(polished); c < bestCost {
			log.Printf("[GA] 2-opt improved %.3fkm -> %.3fkm", bestCost, c)
			bestRoute, bestCost = polished, c
		}
		log.Printf("[TIMING] GA 2-opt: %v", time.Since(phase))
	}

	return finish(model, runSummary{
		algorithm:  AlgorithmGenetic,
		route:      bestRoute,
		cost:       bestCost,
		iterations: p.Generations,
		seed:       seed,
		history:    track.history,
		started:    started,
	}), nil
}

// nextGeneration keeps the elites unchanged and breeds the rest
func (s *Genetic) nextGeneration(rng *rand.Rand, population [][]int, costs []float64) [][]int {
	p := s.params
	ranked := rankByCost(costs)

	next := make([][]int, 0, p.PopSize)
	for _, idx := range ranked[:p.EliteSize] {
		next = append(next, cloneRoute(population[idx]))
	}

	for len(next) < p.PopSize {
		a := tournament(rng, costs, p.TournamentSize)
		b := tournament(rng, costs, p.TournamentSize)
		child := orderedCrossover(rng, population[a], population[b])
		if rng.Float64() < p.MutationRate {
			invertMutation(rng, child)
		}
		next = append(next, child)
	}
	return next
}

// tournament samples size distinct individuals and returns the fittest
func tournament(rng *rand.Rand, costs []float64, size int) int {
	if size > len(costs) {
		size = len(costs)
	}
	pool := rng.Perm(len(costs))[:size]
	winner := pool[0]
	for _, idx := range pool[1:] {
		if fitness(costs[idx]) > fitness(costs[winner]) {
			winner = idx
		}
	}
	return winner
}

// orderedCrossover copies a random slice of a into the child at the same
// positions and fills the remaining positions with b's genes in b's order.
func orderedCrossover(rng *rand.Rand, a, b []int) []int {
	n := len(a)
	child := make([]int, n)
	if n == 0 {
		return child
	}

	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}

	used := make([]bool, n)
	for k := i; k <= j; k++ {
		child[k] = a[k]
		used[a[k]] = true
	}

	pos := 0
	for _, gene := range b {
		if used[gene] {
			continue
		}
		if pos == i {
			pos = j + 1
		}
		child[pos] = gene
		pos++
	}
	return child
}

// invertMutation reverses the segment between two distinct positions
func invertMutation(rng *rand.Rand, route []int) {
	n := len(route)
	if n < 2 {
		return
	}
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	if i > j {
		i, j = j, i
	}
	reverse(route, i, j)
}
