// Package generator produces synthetic weather, grades, text and reference
// field values from a shared seeded random source.
package generator

import (
	"math/rand"
	"sync"
	"time"
)

// Source is a seeded random source safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// NewSource creates a Source. A zero seed uses the current time.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the seed in use, for logging reproducible runs.
func (s *Source) Seed() int64 {
	return s.seed
}

// IntRange returns a uniform int in [lo, hi].
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Intn(hi-lo+1)
}

// FloatRange returns a uniform float64 in [lo, hi).
func (s *Source) FloatRange(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

// Normal returns a normally distributed value.
func (s *Source) Normal(mean, stddev float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.NormFloat64()*stddev + mean
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// Intn returns a uniform int in [0, n).
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Uint64 returns a random value, used to seed dependent generators.
func (s *Source) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint64()
}

// Pick returns a uniformly chosen element of choices.
func Pick[T any](s *Source, choices []T) T {
	return choices[s.Intn(len(choices))]
}

// Sample returns n distinct elements of choices in random order.
func Sample[T any](s *Source, choices []T, n int) []T {
	s.mu.Lock()
	perm := s.rng.Perm(len(choices))
	s.mu.Unlock()
	if n > len(choices) {
		n = len(choices)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = choices[perm[i]]
	}
	return out
}
