// Package sampling provides seeded random sources and categorical sampling
// for synthetic data generation. No package-level random state is used.
package sampling

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brianvoe/gofakeit/v7"
)

// Source is the random source used throughout generation.
// *math/rand/v2.Rand satisfies it, so tests can supply their own sequences.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// NewSource returns a deterministic source seeded with seed.
func NewSource(seed uint64) Source {
	return &fakerSource{faker: gofakeit.New(seed)}
}

// FromFaker adapts an existing faker to Source.
func FromFaker(f *gofakeit.Faker) Source {
	return &fakerSource{faker: f}
}

type fakerSource struct {
	faker *gofakeit.Faker
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (s *fakerSource) IntN(n int) int {
	if n <= 0 {
		panic("sampling: invalid argument to IntN")
	}
	return s.faker.Number(0, n-1)
}

// Float64 returns a value in [0, 1).
func (s *fakerSource) Float64() float64 {
	f := s.faker.Float64Range(0, 1)
	if f >= 1 {
		return 0
	}
	return f
}

// Entry is one category of a weighted table.
type Entry[T any] struct {
	Value  T
	Weight float64
}

var (
	ErrEmptyTable     = errors.New("sampling: empty weight table")
	ErrNegativeWeight = errors.New("sampling: negative weight")
	ErrZeroTotal      = errors.New("sampling: weights sum to zero")
)

// Weighted draws categories proportionally to their weights. The cumulative
// table is built once; each draw is a binary search over it.
type Weighted[T any] struct {
	values []T
	cum    []float64
	total  float64
}

// NewWeighted builds a sampler from the given entries.
func NewWeighted[T any](entries []Entry[T]) (*Weighted[T], error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	w := &Weighted[T]{
		values: make([]T, len(entries)),
		cum:    make([]float64, len(entries)),
	}
	for i, e := range entries {
		if e.Weight < 0 {
			return nil, fmt.Errorf("%w: %v=%v", ErrNegativeWeight, e.Value, e.Weight)
		}
		w.total += e.Weight
		w.values[i] = e.Value
		w.cum[i] = w.total
	}
	if w.total == 0 {
		return nil, ErrZeroTotal
	}
	return w, nil
}

// MustWeighted is like NewWeighted but panics on an invalid table.
func MustWeighted[T any](entries []Entry[T]) *Weighted[T] {
	w, err := NewWeighted(entries)
	if err != nil {
		panic(err)
	}
	return w
}

// Draw returns one category.
func (w *Weighted[T]) Draw(src Source) T {
	r := src.Float64() * w.total
	i := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] > r })
	if i == len(w.cum) {
		i = len(w.cum) - 1
	}
	return w.values[i]
}

// Values returns the categories in table order.
func (w *Weighted[T]) Values() []T {
	out := make([]T, len(w.values))
	copy(out, w.values)
	return out
}

// Total returns the sum of all weights.
func (w *Weighted[T]) Total() float64 {
	return w.total
}

// IntRange returns an integer in [lo, hi].
func IntRange(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Uniform returns a float in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Bernoulli returns true with probability p.
func Bernoulli(src Source, p float64) bool {
	return src.Float64() < p
}

// Pick returns a uniformly chosen element. It panics on an empty slice.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}

// Sample returns k distinct elements chosen uniformly without replacement.
// The input slice is not modified. k is capped at len(items).
func Sample[T any](src Source, items []T, k int) []T {
	if k > len(items) {
		k = len(items)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < k; i++ {
		j := i + src.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
