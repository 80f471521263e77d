// Package pairing partitions a roster into random, disjoint pairs.
package pairing

import "math/rand/v2"

// Pair is an unordered couple of members.
type Pair[T any] struct {
	First  T
	Second T
}

type options struct {
	intN func(n int) int
}

// Option configures MakePairs.
type Option func(*options)

// WithRand draws shuffle positions from r instead of the global source.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.intN = r.IntN
	}
}

// MakePairs shuffles a copy of members and pairs up consecutive entries
// (0-1, 2-3, ...). With an odd count the last shuffled member is left out.
func MakePairs[T any](members []T, opts ...Option) []Pair[T] {
	o := options{intN: rand.IntN}
	for _, opt := range opts {
		opt(&o)
	}

	shuffled := make([]T, len(members))
	copy(shuffled, members)
	shuffle(shuffled, o.intN)

	pairs := make([]Pair[T], 0, len(shuffled)/2)
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair[T]{First: shuffled[i], Second: shuffled[i+1]})
	}
	return pairs
}

// shuffle is Fisher-Yates: position i takes a uniform pick from [i, n-1].
func shuffle[T any](items []T, intN func(n int) int) {
	n := len(items)
	for i := 0; i < n-1; i++ {
		j := i + intN(n-i)
		items[i], items[j] = items[j], items[i]
	}
}
