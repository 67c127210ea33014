package agent

import (
	"sync"
	"time"
)

// RateLimiter implements a sliding-window limiter keyed by client address.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(r.requests[key], now.Add(-r.window))

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.once.Do(func() { close(r.done) })
}

// startEviction periodically drops keys with no requests inside the window.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.evict(time.Now())
			}
		}
	}()
}

func (r *RateLimiter) evict(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := now.Add(-r.window)
	for key, times := range r.requests {
		fresh := pruneBefore(times, cutoff)
		if len(fresh) == 0 {
			delete(r.requests, key)
		} else {
			r.requests[key] = fresh
		}
	}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
