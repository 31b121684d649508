package store

import (
	"sync"
	"time"
)

// unlockLimiter is a per-wallet token bucket over PIN attempts. Each attempt
// costs one token; a successful unlock refills the bucket. An attacker
// guessing PINs online is throttled to the refill rate after the burst.
type unlockLimiter struct {
	rate  float64 // tokens added per second
	burst float64 // max bucket capacity

	mu      sync.Mutex
	buckets map[string]*attemptBucket
}

type attemptBucket struct {
	tokens   float64
	lastSeen time.Time
}

// newUnlockLimiter allows `ratePerMin` attempts per minute per wallet after
// an initial burst of `burst` attempts.
func newUnlockLimiter(ratePerMin, burst int) *unlockLimiter {
	return &unlockLimiter{
		rate:    float64(ratePerMin) / 60.0,
		burst:   float64(burst),
		buckets: make(map[string]*attemptBucket),
	}
}

// allow charges one attempt against the wallet's bucket. When the bucket is
// empty it reports how long until the next attempt is permitted.
func (l *unlockLimiter) allow(wallet string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[wallet]
	if !ok {
		bucket = &attemptBucket{tokens: l.burst, lastSeen: now}
		l.buckets[wallet] = bucket
	}

	// Refill tokens based on elapsed time since last attempt.
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * l.rate
	if bucket.tokens > l.burst {
		bucket.tokens = l.burst
	}
	bucket.lastSeen = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true, 0
	}

	retryAfter := time.Duration((1.0-bucket.tokens)/l.rate*1000) * time.Millisecond
	return false, retryAfter
}

// reset refills the wallet's bucket after a successful unlock.
func (l *unlockLimiter) reset(wallet string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, ok := l.buckets[wallet]; ok {
		bucket.tokens = l.burst
	}
}
