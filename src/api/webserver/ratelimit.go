package webserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window request counter per client.
type RateLimiter struct {
	mu     sync.Mutex
	rate   int
	window time.Duration
	now    func() time.Time
	start  time.Time
	counts map[string]int
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{rate: rate, window: window, now: time.Now, counts: make(map[string]int)}
}

// Allow counts one request for key and reports whether it fits the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.start) >= rl.window {
		rl.start = now
		clear(rl.counts)
	}
	if rl.counts[key] >= rl.rate {
		return false
	}
	rl.counts[key]++
	return true
}

func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"err": fmt.Sprintf("rate limit exceeded: %d requests per %v", limiter.rate, limiter.window),
			})
			return
		}
		c.Next()
	}
}
