package ratelimit

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/mail-dispatcher/pkg/apiresponses"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

type Config struct {
	// Rate is the sustained number of requests per second per client.
	Rate  float64
	Burst int
	// CleanupInterval is how often idle clients are forgotten; MaxAge is how
	// long a client must be idle to be forgotten.
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

// DefaultAPIConfig allows 20 req/s per client IP with a burst of 50.
func DefaultAPIConfig() Config {
	return Config{
		Rate:            20,
		Burst:           50,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP. A background goroutine
// forgets idle clients until Stop is called.
type IPRateLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	config   Config
	done     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	rl := &IPRateLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether ip may send one more request now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	ok, _ := rl.reserve(ip, time.Now())
	return ok
}

// reserve takes a token for ip. When none is available it returns false and
// how long until one is.
func (rl *IPRateLimiter) reserve(ip string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return rl.MiddlewareWithExclusions(nil)
}

// MiddlewareWithExclusions skips limiting for paths starting with one of
// prefixes, e.g. health checks and metric scrapes. Rejected requests get a
// Retry-After header.
func (rl *IPRateLimiter) MiddlewareWithExclusions(prefixes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		ok, wait := rl.reserve(c.ClientIP(), time.Now())
		if !ok {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.RequestsRateLimited.WithLabelValues(route).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			apiresponses.RespondTooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.forgetIdle(now)
		}
	}
}

func (rl *IPRateLimiter) forgetIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.config.MaxAge {
			delete(rl.buckets, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *IPRateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.buckets)
}

func (rl *IPRateLimiter) Config() Config {
	return rl.config
}
