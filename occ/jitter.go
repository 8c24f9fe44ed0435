package occ

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitterBackOff waits a uniformly random duration in [min, max]. It
// implements backoff.BackOff so it composes with the rest of the policy
// machinery.
type jitterBackOff struct {
	min, max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

var _ backoff.BackOff = (*jitterBackOff)(nil)

func newJitterBackOff(min, max time.Duration) *jitterBackOff {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &jitterBackOff{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (j *jitterBackOff) NextBackOff() time.Duration {
	if j.max == j.min {
		return j.min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.min + time.Duration(j.rng.Int63n(int64(j.max-j.min)+1))
}

func (j *jitterBackOff) Reset() {}
