// Package ratelimit provides PM's per-provider token-bucket throttle for
// steady-rate request shaping.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketSet is PM's per-provider token-bucket throttle: one
// golang.org/x/time/rate.Limiter per providerName, created lazily with the
// provider's configured rate and burst.
type BucketSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewBucketSet creates an empty set of per-provider limiters.
func NewBucketSet() *BucketSet {
	return &BucketSet{limiters: make(map[string]*rate.Limiter)}
}

func (b *BucketSet) get(provider string, ratePerSec float64, burst int) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(ratePerSec), burst)
		b.limiters[provider] = l
	}
	return l
}

// Allow reports, without blocking, whether a token is available for
// provider, creating its bucket on first use; PM uses it to try the next
// candidate instead of waiting.
func (b *BucketSet) Allow(provider string, ratePerSec float64, burst int) bool {
	return b.get(provider, ratePerSec, burst).Allow()
}

// ReserveDelay returns how long a caller would need to wait for the next
// token, without consuming it, so PM can log/expose advisory backoff.
func (b *BucketSet) ReserveDelay(provider string, ratePerSec float64, burst int) time.Duration {
	r := b.get(provider, ratePerSec, burst).Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}
