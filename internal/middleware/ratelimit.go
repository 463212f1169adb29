package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles each caller with a token bucket. Callers are keyed by
// user id when Auth ran before this middleware, otherwise by client IP.
func RateLimit(requestsPerSecond float64, burst int) gin.HandlerFunc {
	if requestsPerSecond <= 0 || burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*callerLimiter)
		lastGC   = time.Now()
	)

	get := func(key string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if now.Sub(lastGC) > limiterIdleTTL {
			for k, v := range limiters {
				if now.Sub(v.lastSeen) > limiterIdleTTL {
					delete(limiters, k)
				}
			}
			lastGC = now
		}

		entry, ok := limiters[key]
		if !ok {
			entry = &callerLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
			limiters[key] = entry
		}
		entry.lastSeen = now
		return entry.limiter
	}

	return func(c *gin.Context) {
		key := c.GetString(CtxUserIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		limiter := get(key, time.Now())
		c.Header("X-RateLimit-Limit", strconv.Itoa(burst))
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
