package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	requests     map[string]*bucket
	mu           sync.Mutex
	rate         float64 // tokens per second
	burst        int
	maxCacheSize int
	now          func() time.Time
	done         chan struct{}
	stopOnce     sync.Once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter allows burst requests at once, refilled at rate per second.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		requests:     make(map[string]*bucket),
		rate:         rate,
		burst:        burst,
		maxCacheSize: 10000,
		now:          time.Now,
		done:         make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	b, exists := rl.requests[ip]
	if !exists {
		if len(rl.requests) >= rl.maxCacheSize {
			rl.evictOldest(now)
		}
		rl.requests[ip] = &bucket{tokens: float64(rl.burst) - 1, lastRefill: now}
		return true
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// idle is how long a bucket takes to refill completely.
func (rl *RateLimiter) idle() time.Duration {
	if rl.rate <= 0 {
		return time.Hour
	}
	return time.Duration(float64(rl.burst) / rl.rate * float64(time.Second))
}

// evictOldest drops full buckets, then 10% of the rest if still over capacity.
func (rl *RateLimiter) evictOldest(now time.Time) {
	idle := rl.idle()
	for ip, b := range rl.requests {
		if now.Sub(b.lastRefill) > idle {
			delete(rl.requests, ip)
		}
	}

	if len(rl.requests) >= rl.maxCacheSize {
		toRemove := len(rl.requests) / 10
		removed := 0
		for ip := range rl.requests {
			delete(rl.requests, ip)
			removed++
			if removed >= toRemove {
				break
			}
		}
	}
}

// Middleware wraps an HTTP handler with rate limiting
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next(w, r)
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// getClientIP uses RemoteAddr only; X-Forwarded-For can be spoofed.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			idle := rl.idle()
			for ip, b := range rl.requests {
				if now.Sub(b.lastRefill) > idle {
					delete(rl.requests, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}
