package routing

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
)

const defaultSteepness = 2.0

type binaryParticle struct {
	bits     []float64
	velocity []float64
	best     []float64
	bestCost float64
	cost     float64
}

// BPSO is a binary particle swarm. Each bit says whether a waypoint is
// visited and selected waypoints are visited in index order, so the encoding
// only chooses a subset; it never reorders.
//
// With the default force-all mask policy every incomplete mask is replaced by
// all ones, which makes every particle the identity route. That policy exists
// for comparison with the other solvers. The at-least-one policy suits
// problems where waypoints are optional.
type BPSO struct {
	problem Problem
	params  BPSOParams
	opts    options
}

// NewBPSO validates the problem and parameters
func NewBPSO(problem Problem, params BPSOParams, opts ...Option) (*BPSO, error) {
	if err := problem.validate(); err != nil {
		return nil, err
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if params.MaskPolicy == "" {
		params.MaskPolicy = MaskForceAll
	}
	if params.Steepness == 0 {
		params.Steepness = defaultSteepness
	}
	return &BPSO{problem: problem, params: params, opts: buildOptions(opts)}, nil
}

// Optimize runs the swarm for the configured number of iterations
func (s *BPSO) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	started := time.Now()
	p := s.params
	seed := effectiveSeed(p.Seed)

	model, err := s.opts.buildModel(ctx, s.problem)
	if err != nil {
		return nil, err
	}
	n := model.N()
	log.Printf("[BPSO] Starting: waypoints=%d particles=%d iterations=%d w=%.2f c1=%.2f c2=%.2f mask=%s",
		n, p.Particles, p.Iterations, p.Inertia, p.C1, p.C2, p.MaskPolicy)

	streams := newStreams(seed, p.Particles)
	workers := workerCount(p.Workers)
	track := newTracker(s.opts.progress, p.Iterations)

	swarm := make([]binaryParticle, p.Particles)
	scatter := func() {
		parallelFor(workers, len(swarm), func(k int) {
			swarm[k] = s.newParticle(streams[k], n)
			swarm[k].cost = model.RouteCost(maskRoute(swarm[k].bits))
			swarm[k].bestCost = swarm[k].cost
		})
	}
	scatter()

	bestMask, bestCost := binarySwarmBest(swarm)
	stale := 0
	costs := make([]float64, len(swarm))

	for iter := 0; iter < p.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		globalBest, _ := binarySwarmBest(swarm)

		parallelFor(workers, len(swarm), func(k int) {
			pt := &swarm[k]
			s.step(streams[k], pt, globalBest, model)
			costs[k] = pt.cost
		})

		if mask, cost := binarySwarmBest(swarm); cost < bestCost {
			bestMask, bestCost = mask, cost
			stale = 0
		} else {
			stale++
		}
		track.record(iter, costs, bestCost)

		if p.StagnationLimit > 0 && stale >= p.StagnationLimit && iter < p.Iterations-1 {
			log.Printf("[BPSO] No improvement for %d iterations at %d, re-scattering swarm", stale, iter)
			scatter()
			stale = 0
		}
	}

	return finish(model, runSummary{
		algorithm:  AlgorithmBPSO,
		route:      maskRoute(bestMask),
		cost:       bestCost,
		iterations: p.Iterations,
		seed:       seed,
		history:    track.history,
		started:    started,
	}), nil
}

func (s *BPSO) newParticle(rng *rand.Rand, n int) binaryParticle {
	bits := make([]float64, n)
	velocity := make([]float64, n)
	for j := range bits {
		if rng.Float64() < 0.5 {
			bits[j] = 1
		}
		velocity[j] = rng.Float64()
	}
	s.applyMaskPolicy(rng, bits)
	return binaryParticle{
		bits:     bits,
		velocity: velocity,
		best:     append([]float64(nil), bits...),
	}
}

// step updates velocity, samples a new mask and refreshes the personal best:
// v' = w*v + c1*r1*(pbest-x) + c2*r2*(gbest-x), clamped to [0, 1], and each
// bit is set with probability sigmoid(k*v').
func (s *BPSO) step(rng *rand.Rand, pt *binaryParticle, globalBest []float64, model *distance.Model) {
	p := s.params
	for j := range pt.bits {
		r1, r2 := rng.Float64(), rng.Float64()
		v := p.Inertia*pt.velocity[j] +
			p.C1*r1*(pt.best[j]-pt.bits[j]) +
			p.C2*r2*(globalBest[j]-pt.bits[j])
		v = math.Min(1, math.Max(0, v))
		pt.velocity[j] = v

		if rng.Float64() < sigmoid(p.Steepness*v) {
			pt.bits[j] = 1
		} else {
			pt.bits[j] = 0
		}
	}
	s.applyMaskPolicy(rng, pt.bits)

	pt.cost = model.RouteCost(maskRoute(pt.bits))
	if pt.cost < pt.bestCost {
		pt.bestCost = pt.cost
		copy(pt.best, pt.bits)
	}
}

func (s *BPSO) applyMaskPolicy(rng *rand.Rand, bits []float64) {
	selected := 0
	for _, b := range bits {
		if b == 1 {
			selected++
		}
	}

	switch s.params.MaskPolicy {
	case MaskAtLeastOne:
		if selected == 0 {
			bits[rng.Intn(len(bits))] = 1
		}
	default:
		if selected < len(bits) {
			for j := range bits {
				bits[j] = 1
			}
		}
	}
}

// maskRoute lists the selected waypoints in index order
func maskRoute(bits []float64) []int {
	route := make([]int, 0, len(bits))
	for j, b := range bits {
		if b == 1 {
			route = append(route, j)
		}
	}
	return route
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func binarySwarmBest(swarm []binaryParticle) ([]float64, float64) {
	best := 0
	for k := range swarm {
		if swarm[k].bestCost < swarm[best].bestCost {
			best = k
		}
	}
	return append([]float64(nil), swarm[best].best...), swarm[best].bestCost
}
