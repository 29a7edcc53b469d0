package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type limit struct {
	perSec rate.Limit
	burst  int
}

// Limiter keeps one token bucket per key, e.g. per provider.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*rate.Limiter
	def      limit
	override map[string]limit
}

// New creates a limiter allowing perSec requests per second with the given burst
// for every key without its own limit.
func New(perSec float64, burst int) *Limiter {
	return &Limiter{
		m:        make(map[string]*rate.Limiter),
		def:      limit{perSec: rate.Limit(perSec), burst: max(burst, 1)},
		override: make(map[string]limit),
	}
}

// SetLimit gives key its own rate and burst. An existing bucket is adjusted in place.
func (l *Limiter) SetLimit(key string, perSec float64, burst int) *Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim := limit{perSec: rate.Limit(perSec), burst: max(burst, 1)}
	l.override[key] = lim
	if b, ok := l.m[key]; ok {
		b.SetLimit(lim.perSec)
		b.SetBurst(lim.burst)
	}
	return l
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		lim, ok := l.override[key]
		if !ok {
			lim = l.def
		}
		b = rate.NewLimiter(lim.perSec, lim.burst)
		l.m[key] = b
	}
	return b
}

// Wait blocks until a token for key is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}
