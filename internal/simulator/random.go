package simulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RandomSource supplies uniform draws in [0, 1). Every stochastic decision in
// the simulator goes through one, so a seeded source reproduces a run.
type RandomSource interface {
	Float64() float64
}

// LockedRand is a seeded RandomSource that is safe to share between goroutines.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource creates a seeded source. A zero seed seeds from the clock.
func NewRandomSource(seed int64) *LockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedRand{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns the next draw.
func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// SequenceSource replays a fixed list of draws, cycling when exhausted.
// Useful for driving exact branches in tests and demos.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource creates a source that returns values in order.
func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &SequenceSource{values: values}
}

// Float64 returns the next value in the sequence.
func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Draws returns how many values have been consumed.
func (s *SequenceSource) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// uniform maps one draw onto [lo, hi].
func uniform(r RandomSource, lo, hi decimal.Decimal) decimal.Decimal {
	u := decimal.NewFromFloat(r.Float64())
	return lo.Add(hi.Sub(lo).Mul(u))
}

// chance reports whether a draw lands under probability p.
func chance(r RandomSource, p float64) bool {
	return r.Float64() < p
}
