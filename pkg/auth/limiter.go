package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Fallback limits used when the security config leaves rate limiting unset.
const (
	defaultRPS   = 5
	defaultBurst = 10
)

// keyLimiters hands out one token bucket per API key, or per client IP for
// unauthenticated callers. Buckets are created lazily on first sight of a
// key and kept for the process lifetime.
type keyLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     float64
	burst   int
}

func newKeyLimiters(cfg SecConfig) *keyLimiters {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &keyLimiters{buckets: map[string]*rate.Limiter{}, rps: rps, burst: burst}
}

// Allow reports whether the caller behind key may proceed right now.
func (k *keyLimiters) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.buckets[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(k.rps), k.burst)
		k.buckets[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}
