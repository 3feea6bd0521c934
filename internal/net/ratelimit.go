package net

import (
	"net"
	"sync"

	"github.com/juju/ratelimit"
)

// joinLimiter keeps one token bucket per client address so a single
// misbehaving client cannot spin up endless sessions.
type joinLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ratelimit.Bucket
	rate    float64
	burst   int64
}

func newJoinLimiter(rate float64, burst int64) *joinLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &joinLimiter{
		buckets: make(map[string]*ratelimit.Bucket),
		rate:    rate,
		burst:   burst,
	}
}

func (l *joinLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	bucket, ok := l.buckets[host]
	if !ok {
		bucket = ratelimit.NewBucketWithRate(l.rate, l.burst)
		l.buckets[host] = bucket
	}
	// Drop idle buckets opportunistically once the map grows.
	if len(l.buckets) > 1024 {
		for addr, candidate := range l.buckets {
			if candidate.Available() == candidate.Capacity() {
				delete(l.buckets, addr)
			}
		}
	}
	l.mu.Unlock()

	return bucket.TakeAvailable(1) == 1
}
