package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio is a packed n/d pair; zero means every event passes.
type ratio struct{ n, d uint32 }

// ratioSampler lets n events out of every window of d through.
type ratioSampler struct {
	cfg  atomic.Pointer[ratio]
	seen atomic.Uint64
}

func newRatioSampler(n, d int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(n, d)
	return s
}

// Set changes the ratio and restarts the window. n <= 0 or d <= 0 disables sampling.
func (s *ratioSampler) Set(n, d int) {
	r := &ratio{}
	if n > 0 && d > 0 {
		r.n, r.d = uint32(min(n, d)), uint32(d)
	}
	s.cfg.Store(r)
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.cfg.Load()
	if r == nil || r.d == 0 {
		return true
	}
	pos := (s.seen.Add(1) - 1) % uint64(r.d)
	return pos < uint64(r.n)
}

// parseRatio reads "n/d", or "d" as shorthand for 1/d. Anything else yields 0, 0.
func parseRatio(s string) (int, int) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	d, err := strconv.Atoi(s)
	if err != nil || d <= 0 {
		return 0, 0
	}
	return 1, d
}
