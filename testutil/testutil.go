package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG is a seeded random source for generated circuits. It is safe for
// concurrent use; a given seed always yields the same circuit.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64

	// Cumulative Zipf weights keyed by (n, s).
	zipf map[zipfKey][]float64
}

type zipfKey struct {
	n int
	s float64
}

func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
		zipf: map[zipfKey][]float64{},
	}
}

// Reset rewinds the sequence to the seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	r.rand = rand.New(rand.NewSource(r.seed))
	r.mu.Unlock()
}

func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uniform fills dst with values in [lo, hi).
func (r *RNG) Uniform(dst []float32, lo, hi float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = lo + r.rand.Float32()*(hi-lo)
	}
}

// Zipf returns a value in [0, n) with P(k) proportional to 1/(k+1)^s.
func (r *RNG) Zipf(n int, s float64) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cum, ok := r.zipf[zipfKey{n, s}]
	if !ok {
		cum = make([]float64, n)
		total := 0.0
		for k := range cum {
			total += 1 / math.Pow(float64(k+1), s)
			cum[k] = total
		}
		r.zipf[zipfKey{n, s}] = cum
	}

	u := r.rand.Float64() * cum[n-1]
	return min(sort.SearchFloat64s(cum, u), n-1)
}
