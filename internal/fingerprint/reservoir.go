package fingerprint

import (
	"math/rand"
	"time"
)

// reservoir keeps a bounded uniform sample of a stream of unknown length
// (algorithm R). Every value seen so far has equal probability of being in
// the sample, which is what keeps long-stream pitch statistics free of
// recency bias.
type reservoir struct {
	capacity int
	seen     int
	values   []float64
	rng      *rand.Rand
}

// newReservoir seeds the sampler explicitly; seed 0 draws from the clock.
// Tests pin the seed for reproducible statistics.
func newReservoir(capacity int, seed int64) *reservoir {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &reservoir{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (r *reservoir) add(v float64) {
	r.seen++
	if len(r.values) < r.capacity {
		r.values = append(r.values, v)
		return
	}
	if j := r.rng.Intn(r.seen); j < r.capacity {
		r.values[j] = v
	}
}

// sample exposes the current reservoir contents. Callers must not mutate.
func (r *reservoir) sample() []float64 {
	return r.values
}
