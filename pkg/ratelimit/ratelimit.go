package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a single token-bucket counter.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     int64
	refillRate int64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN consumes n tokens if available.
func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	added := int64(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if added > 0 {
		tb.tokens += added
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}

// Limiter tracks one bucket per key. It is the process-local fallback
// used when no Redis connection is configured; with multiple engine
// replicas the redis limiter is the one that actually enforces the
// global bound.
type Limiter struct {
	mu              sync.RWMutex
	buckets         map[string]*TokenBucket
	capacity        int64
	refillRate      int64
	cleanupInterval time.Duration
}

// NewLimiter creates a keyed limiter and starts its cleanup loop.
func NewLimiter(capacity, refillRate int64) *Limiter {
	l := &Limiter{
		buckets:         make(map[string]*TokenBucket),
		capacity:        capacity,
		refillRate:      refillRate,
		cleanupInterval: 10 * time.Minute,
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token for the key.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Reset forgets the key's bucket.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = NewTokenBucket(l.capacity, l.refillRate)
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		l.cleanup()
	}
}

// cleanup drops buckets that are full and idle.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.tokens == b.capacity && now.Sub(b.lastRefill) > l.cleanupInterval {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}
