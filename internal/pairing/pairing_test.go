package pairing

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func members(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestMakePairsCountsAndDisjointness(t *testing.T) {
	for n := 0; n <= 25; n++ {
		roster := members(n)
		pairs := MakePairs(roster)

		require.Len(t, pairs, n/2, "n=%d", n)

		seen := make(map[int]bool)
		for _, p := range pairs {
			assert.NotEqual(t, p.First, p.Second, "member paired with itself")
			assert.False(t, seen[p.First], "member %d appears twice", p.First)
			assert.False(t, seen[p.Second], "member %d appears twice", p.Second)
			seen[p.First] = true
			seen[p.Second] = true
		}

		dropped := 0
		for _, m := range roster {
			if !seen[m] {
				dropped++
			}
		}
		assert.Equal(t, n%2, dropped, "n=%d", n)
	}
}

func TestMakePairsEdgeCases(t *testing.T) {
	assert.Empty(t, MakePairs([]string{}))
	assert.Empty(t, MakePairs([]string(nil)))
	assert.Empty(t, MakePairs([]string{"solo"}))
}

func TestMakePairsDoesNotReorderInput(t *testing.T) {
	roster := members(10)
	MakePairs(roster, WithRand(rand.New(rand.NewPCG(1, 2))))
	assert.Equal(t, members(10), roster)
}

func TestMakePairsDeterministicWithSeed(t *testing.T) {
	a := MakePairs(members(8), WithRand(rand.New(rand.NewPCG(42, 7))))
	b := MakePairs(members(8), WithRand(rand.New(rand.NewPCG(42, 7))))
	assert.Equal(t, a, b)
}

func TestShuffleIsRoughlyUniform(t *testing.T) {
	// Every permutation of 3 items should show up about 1/6 of the time.
	r := rand.New(rand.NewPCG(3, 9))
	counts := make(map[[3]int]int)
	const trials = 60000
	for i := 0; i < trials; i++ {
		items := []int{0, 1, 2}
		shuffle(items, r.IntN)
		counts[[3]int{items[0], items[1], items[2]}]++
	}

	require.Len(t, counts, 6)
	for perm, c := range counts {
		assert.InDelta(t, trials/6, c, trials/60, "permutation %v", perm)
	}
}
