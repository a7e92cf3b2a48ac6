package routing

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"waypoint-optimizer/internal/models"
)

// swap exchanges the waypoints at two route positions
type swap struct {
	i, j int
}

type permParticle struct {
	position []int
	velocity []swap
	best     []int
	bestCost float64
	cost     float64
}

// PSO is a particle swarm over permutations. A velocity is a list of swaps;
// each iteration it keeps part of the previous velocity and adds parts of the
// swap sequences leading to the personal and global bests.
type PSO struct {
	problem Problem
	params  PSOParams
	opts    options
}

// NewPSO validates the problem and parameters
func NewPSO(problem Problem, params PSOParams, opts ...Option) (*PSO, error) {
	if err := problem.validate(); err != nil {
		return nil, err
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	return &PSO{problem: problem, params: params, opts: buildOptions(opts)}, nil
}

// Optimize runs the swarm for the configured number of iterations
func (s *PSO) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	started := time.Now()
	p := s.params
	seed := effectiveSeed(p.Seed)

	model, err := s.opts.buildModel(ctx, s.problem)
	if err != nil {
		return nil, err
	}
	n := model.N()
	log.Printf("[PSO] Starting: waypoints=%d particles=%d iterations=%d w=%.2f c1=%.2f c2=%.2f stagnation_limit=%d",
		n, p.Particles, p.Iterations, p.Inertia, p.C1, p.C2, p.StagnationLimit)

	streams := newStreams(seed, p.Particles)
	workers := workerCount(p.Workers)
	track := newTracker(s.opts.progress, p.Iterations)

	swarm := make([]permParticle, p.Particles)
	scatter := func() {
		parallelFor(workers, len(swarm), func(k int) {
			swarm[k] = newPermParticle(streams[k], n)
			swarm[k].cost = model.RouteCost(swarm[k].position)
			swarm[k].bestCost = swarm[k].cost
		})
	}
	scatter()

	bestRoute, bestCost := swarmBest(swarm)
	stale := 0
	costs := make([]float64, len(swarm))

	for iter := 0; iter < p.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		globalBest, _ := swarmBest(swarm)

		parallelFor(workers, len(swarm), func(k int) {
			pt := &swarm[k]
			rng := streams[k]
			pt.velocity = s.nextVelocity(rng, pt, globalBest, n)
			for _, sw := range pt.velocity {
				pt.position[sw.i], pt.position[sw.j] = pt.position[sw.j], pt.position[sw.i]
			}
			pt.cost = model.RouteCost(pt.position)
			if pt.cost < pt.bestCost {
				pt.bestCost = pt.cost
				pt.best = cloneRoute(pt.position)
			}
			costs[k] = pt.cost
		})

		if route, cost := swarmBest(swarm); cost < bestCost {
			bestRoute, bestCost = route, cost
			stale = 0
		} else {
			stale++
		}
		track.record(iter, costs, bestCost)

		if p.StagnationLimit > 0 && stale >= p.StagnationLimit && iter < p.Iterations-1 {
			log.Printf("[PSO] No improvement for %d iterations at %d, re-scattering swarm", stale, iter)
			scatter()
			stale = 0
		}
	}

	return finish(model, runSummary{
		algorithm:  AlgorithmPSO,
		route:      bestRoute,
		cost:       bestCost,
		iterations: p.Iterations,
		seed:       seed,
		history:    track.history,
		started:    started,
	}), nil
}

func newPermParticle(rng *rand.Rand, n int) permParticle {
	position := rng.Perm(n)
	velocity := make([]swap, rng.Intn(n))
	for i := range velocity {
		velocity[i] = swap{i: rng.Intn(n), j: rng.Intn(n)}
	}
	return permParticle{
		position: position,
		velocity: velocity,
		best:     cloneRoute(position),
	}
}

// nextVelocity keeps each swap of the old velocity with probability w and each
// swap towards the personal (global) best with probability c1*r1 (c2*r2).
func (s *PSO) nextVelocity(rng *rand.Rand, pt *permParticle, globalBest []int, n int) []swap {
	p := s.params
	r1, r2 := rng.Float64(), rng.Float64()
	keepOld := math.Min(1, p.Inertia)
	keepPersonal := math.Min(1, p.C1*r1)
	keepGlobal := math.Min(1, p.C2*r2)

	next := make([]swap, 0, n)
	for _, sw := range pt.velocity {
		if rng.Float64() < keepOld {
			next = append(next, sw)
		}
	}
	for _, sw := range swapSequence(pt.position, pt.best) {
		if rng.Float64() < keepPersonal {
			next = append(next, sw)
		}
	}
	for _, sw := range swapSequence(pt.position, globalBest) {
		if rng.Float64() < keepGlobal {
			next = append(next, sw)
		}
	}

	if len(next) > n {
		next = next[len(next)-n:]
	}
	return next
}

// swapSequence returns the swaps that turn from into to when applied in order
func swapSequence(from, to []int) []swap {
	work := cloneRoute(from)
	index := make([]int, len(work))
	for pos, v := range work {
		index[v] = pos
	}

	var swaps []swap
	for i := range work {
		if work[i] == to[i] {
			continue
		}
		j := index[to[i]]
		swaps = append(swaps, swap{i: i, j: j})
		index[work[i]], index[work[j]] = j, i
		work[i], work[j] = work[j], work[i]
	}
	return swaps
}

// swarmBest returns a copy of the best personal best in the swarm
func swarmBest(swarm []permParticle) ([]int, float64) {
	best := 0
	for k := range swarm {
		if swarm[k].bestCost < swarm[best].bestCost {
			best = k
		}
	}
	return cloneRoute(swarm[best].best), swarm[best].bestCost
}
