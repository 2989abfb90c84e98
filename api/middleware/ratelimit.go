package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/models"
)

const (
	limiterIdleTTL    = time.Hour
	limiterSweepEvery = 5 * time.Minute
)

// limiterSet holds one token bucket per caller identity.
type limiterSet struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(cfg config.RateLimitConfig) *limiterSet {
	return &limiterSet{
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*bucket),
	}
}

func (s *limiterSet) allow(identity string, now time.Time) bool {
	s.mu.Lock()
	b, ok := s.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.buckets[identity] = b
	}
	b.lastSeen = now
	s.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle since before cutoff and returns how many remain.
func (s *limiterSet) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, id)
		}
	}
	return len(s.buckets)
}

// RateLimit returns per-identity token-bucket rate limiting. The identity is
// the API key set by Auth, or the client IP without one. Buckets idle for an
// hour are swept every five minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(cfg)

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for now := range ticker.C {
			set.sweep(now.Add(-limiterIdleTTL))
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(identityKey)
		if identity == "" {
			identity = c.ClientIP()
		}
		if !set.allow(identity, time.Now()) {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, slow down")
			return
		}
		c.Next()
	}
}
