package routing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
	"waypoint-optimizer/internal/testutil"
)

func squareModel(t *testing.T) *distance.Model {
	t.Helper()
	m, err := distance.NewModel(context.Background(), testutil.SquareWaypoints(),
		models.Coordinates{}, models.Coordinates{}, testutil.Euclidean)
	require.NoError(t, err)
	return m
}

func TestTwoOptUncrossesSquare(t *testing.T) {
	m := squareModel(t)
	crossed := []int{0, 2, 1, 3}

	improved := twoOpt(m, crossed)

	assert.InDelta(t, 4*math.Sqrt2, m.RouteCost(improved), 1e-9)
	assert.Equal(t, []int{0, 2, 1, 3}, crossed, "input must not be modified")
}

func TestTwoOptNeverWorsensAndIsIdempotent(t *testing.T) {
	points := testutil.RandomWaypoints(30, 17)
	m, err := distance.NewModel(context.Background(), points,
		models.Coordinates{Lat: -6.5, Lng: 106.5}, models.Coordinates{Lat: -5.7, Lng: 107.3}, distance.Haversine)
	require.NoError(t, err)

	rng := newStream(3, 0)
	for trial := 0; trial < 10; trial++ {
		route := rng.Perm(len(points))

		once := twoOpt(m, route)
		twice := twoOpt(m, once)

		assert.True(t, testutil.IsPermutation(once, len(points)))
		assert.LessOrEqual(t, m.RouteCost(once), m.RouteCost(route)+1e-9)
		assert.Equal(t, once, twice)
	}
}

func TestTwoOptShortRoutes(t *testing.T) {
	m := squareModel(t)
	assert.Equal(t, []int{2}, twoOpt(m, []int{2}))
	assert.Empty(t, twoOpt(m, nil))
}

func TestOrderedCrossoverProducesPermutation(t *testing.T) {
	rng := newStream(11, 0)
	for trial := 0; trial < 200; trial++ {
		a := rng.Perm(9)
		b := rng.Perm(9)

		child := orderedCrossover(rng, a, b)

		require.True(t, testutil.IsPermutation(child, 9), "a=%v b=%v child=%v", a, b, child)
	}
}

func TestOrderedCrossoverKeepsParentOrder(t *testing.T) {
	rng := newStream(5, 0)
	for trial := 0; trial < 200; trial++ {
		a := rng.Perm(8)
		b := rng.Perm(8)

		child := orderedCrossover(rng, a, b)

		assert.True(t, isOrderedCrossoverOf(child, a, b), "a=%v b=%v child=%v", a, b, child)
	}
}

func TestOrderedCrossoverFixedParents(t *testing.T) {
	rng := newStream(5, 0)
	a := []int{0, 1, 2, 3, 4, 5}
	b := []int{5, 4, 3, 2, 1, 0}

	child := orderedCrossover(rng, a, b)

	assert.True(t, isOrderedCrossoverOf(child, a, b), "child=%v", child)
	assert.False(t, isOrderedCrossoverOf([]int{0, 2, 1, 3, 4, 5}, []int{0, 1, 2, 3, 4, 5}, []int{5, 4, 3, 2, 1, 0}))
}

// isOrderedCrossoverOf reports whether some slice child[i..j] is copied from a
// at the same positions while the remaining genes follow b's relative order.
func isOrderedCrossoverOf(child, a, b []int) bool {
	n := len(child)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if windowMatches(child, a, b, i, j) {
				return true
			}
		}
	}
	return false
}

func windowMatches(child, a, b []int, i, j int) bool {
	inWindow := make(map[int]bool, j-i+1)
	for k := i; k <= j; k++ {
		if child[k] != a[k] {
			return false
		}
		inWindow[a[k]] = true
	}

	rest := make([]int, 0, len(b))
	for _, gene := range b {
		if !inWindow[gene] {
			rest = append(rest, gene)
		}
	}
	pos := 0
	for k, gene := range child {
		if k >= i && k <= j {
			continue
		}
		if pos >= len(rest) || rest[pos] != gene {
			return false
		}
		pos++
	}
	return pos == len(rest)
}

func TestInvertMutation(t *testing.T) {
	rng := newStream(9, 0)
	for trial := 0; trial < 100; trial++ {
		route := []int{0, 1, 2, 3, 4, 5, 6, 7}
		invertMutation(rng, route)

		require.True(t, testutil.IsPermutation(route, 8))
		assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, route)
	}

	single := []int{0}
	invertMutation(rng, single)
	assert.Equal(t, []int{0}, single)
}

func TestTournamentPicksFittestWhenSampleIsWholePopulation(t *testing.T) {
	rng := newStream(1, 0)
	costs := []float64{9, 4, 7, 2, 8}

	assert.Equal(t, 3, tournament(rng, costs, 5))
	assert.Equal(t, 3, tournament(rng, costs, 50))
}

func TestFitnessPrefersShorterRoutes(t *testing.T) {
	assert.Greater(t, fitness(10), fitness(20))
	assert.False(t, math.IsInf(fitness(0), 0))
}

func TestSwapSequenceTransformsRoute(t *testing.T) {
	rng := newStream(13, 0)
	for trial := 0; trial < 50; trial++ {
		from := rng.Perm(10)
		to := rng.Perm(10)

		work := cloneRoute(from)
		swaps := swapSequence(from, to)
		for _, sw := range swaps {
			work[sw.i], work[sw.j] = work[sw.j], work[sw.i]
		}

		assert.Equal(t, to, work)
		assert.Less(t, len(swaps), 10)
	}
	assert.Empty(t, swapSequence([]int{2, 0, 1}, []int{2, 0, 1}))
}

func TestRouletteFallsBackToUniform(t *testing.T) {
	rng := newStream(2, 0)
	visited := []bool{true, false, true, false}

	for _, total := range []float64{0, math.NaN(), math.Inf(1)} {
		weights := []float64{0, total, 0, total}
		for i := 0; i < 20; i++ {
			pick := roulette(rng, weights, visited, total)
			assert.False(t, visited[pick], "picked visited index %d", pick)
		}
	}
}

func TestRouletteFollowsWeights(t *testing.T) {
	rng := newStream(4, 0)
	visited := []bool{false, false, false}
	weights := []float64{0, 1, 0}

	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, roulette(rng, weights, visited, 1))
	}
}

func TestMaskRouteAndSigmoid(t *testing.T) {
	assert.Equal(t, []int{0, 2, 3}, maskRoute([]float64{1, 0, 1, 1}))
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-2)), sigmoid(2), 1e-12)
}

func TestDeriveSeedSpreadsStreams(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := uint64(0); i < 1000; i++ {
		s := deriveSeed(42, i)
		assert.False(t, seen[s])
		seen[s] = true
	}
	assert.Equal(t, int64(DefaultSeed), effectiveSeed(0))
	assert.Equal(t, int64(5), effectiveSeed(5))
}

func TestParallelForVisitsEverySlot(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		out := make([]int, 25)
		parallelFor(workers, len(out), func(i int) { out[i] = i * i })
		for i, v := range out {
			assert.Equal(t, i*i, v)
		}
	}
}

func TestRankByCostIsStable(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, rankByCost([]float64{3, 5, 1, 3}))
}
