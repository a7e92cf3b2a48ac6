package routing

import (
	"golang.org/x/exp/rand"
)

// masterStream is the stream index reserved for sequential solver phases
const masterStream = 1 << 32

// deriveSeed mixes a base seed and a stream index with SplitMix64 so that
// neighbouring streams are uncorrelated.
func deriveSeed(base, stream uint64) uint64 {
	z := base + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func effectiveSeed(seed int64) int64 {
	if seed == 0 {
		return DefaultSeed
	}
	return seed
}

// newStream returns the generator for one stream of a run
func newStream(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(uint64(seed), stream)))
}

// newStreams returns one generator per ant or particle. Slot k always draws
// from stream k, so results do not depend on how slots map to workers.
func newStreams(seed int64, n int) []*rand.Rand {
	streams := make([]*rand.Rand, n)
	for i := range streams {
		streams[i] = newStream(seed, uint64(i))
	}
	return streams
}
