package ws

import (
	"context"
	"sync"
	"time"
)

// MessageLimiter bounds how fast one connection may send chat messages.
// Forget releases whatever state the limiter holds for a connection;
// the hub calls it when the connection goes away.
type MessageLimiter interface {
	Allow(ctx context.Context, connID string) bool
	Forget(connID string)
}

// tokenBucketLimiter is the in-process default: one refilling bucket per
// connection. A Redis-backed limiter replaces it when configured.
type tokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   int
	window  time.Duration
}

type bucket struct {
	tokens int
	last   time.Time
}

func NewTokenBucketLimiter(burst int, window time.Duration) *tokenBucketLimiter {
	if burst <= 0 {
		burst = 5
	}
	if window <= 0 {
		window = time.Second
	}
	return &tokenBucketLimiter{
		buckets: make(map[string]*bucket),
		burst:   burst,
		window:  window,
	}
}

func (l *tokenBucketLimiter) Allow(ctx context.Context, connID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[connID]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[connID] = b
	}

	refills := int(now.Sub(b.last) / l.window)
	if refills > 0 {
		b.tokens += refills * l.burst
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = b.last.Add(time.Duration(refills) * l.window)
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Forget drops a connection's bucket on disconnect.
func (l *tokenBucketLimiter) Forget(connID string) {
	l.mu.Lock()
	delete(l.buckets, connID)
	l.mu.Unlock()
}
