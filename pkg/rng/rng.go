package rng

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Generator draws integers in an inclusive range.
type Generator interface {
	Intn(lo, hi int) int
}

type source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a clock-seeded generator safe for concurrent use.
func New() Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a generator with a fixed seed, for reproducible draws.
func NewSeeded(seed int64) Generator {
	return &source{r: rand.New(rand.NewSource(seed))}
}

// Intn returns a value in [lo, hi]. If hi < lo it returns lo. Any span is
// allowed, up to the full range of int.
func (s *source) Intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	// hi-lo computed in uint64 cannot overflow
	span := uint64(hi) - uint64(lo)

	s.mu.Lock()
	defer s.mu.Unlock()

	var off uint64
	switch {
	case span < math.MaxInt64:
		off = uint64(s.r.Int63n(int64(span) + 1))
	case span == math.MaxUint64:
		off = s.r.Uint64()
	default:
		// at least half of all draws are accepted
		for off = s.r.Uint64(); off > span; off = s.r.Uint64() {
		}
	}
	return int(uint64(lo) + off)
}

// Fixed always returns the same number, ignoring the range. It backs the
// command-line override.
type Fixed int

func (f Fixed) Intn(lo, hi int) int {
	return int(f)
}
