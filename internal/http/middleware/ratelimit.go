package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// KeyFunc picks the identity a limit applies to. Requests without one pass.
type KeyFunc func(c *gin.Context) (string, bool)

// ByIP limits per client address.
func ByIP(c *gin.Context) (string, bool) {
	return c.ClientIP(), true
}

// ByStaff limits per authenticated staff member. StaffAuth must run first.
func ByStaff(c *gin.Context) (string, bool) {
	id := StaffID(c)
	return id, id != ""
}

// RateLimit allows maxRequests per window for each key. It counts in Redis
// when client is set so every replica shares the budget, and in process
// memory otherwise.
func RateLimit(client *redis.Client, name string, maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	if client == nil {
		return memoryRateLimit(maxRequests, window, key)
	}
	return redisRateLimit(client, name, maxRequests, window, key)
}

type clientInfo struct {
	start time.Time
	count int
}

// pruneAbove bounds the in-memory table; expired windows are swept once it grows past it.
const pruneAbove = 10000

func memoryRateLimit(maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientInfo)
	)
	return func(c *gin.Context) {
		ident, ok := key(c)
		if !ok {
			c.Next()
			return
		}
		now := time.Now()

		mu.Lock()
		if len(clients) > pruneAbove {
			for k, ci := range clients {
				if now.Sub(ci.start) > window {
					delete(clients, k)
				}
			}
		}
		ci, found := clients[ident]
		if !found || now.Sub(ci.start) > window {
			ci = &clientInfo{start: now}
			clients[ident] = ci
		}
		ci.count++
		count := int64(ci.count)
		mu.Unlock()

		if !allow(c, count, maxRequests, window) {
			return
		}
		c.Next()
	}
}

// allow sets the limit headers and aborts the request once count exceeds max.
func allow(c *gin.Context, n int64, maxRequests int, window time.Duration) bool {
	c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-n), 10))
	if n > int64(maxRequests) {
		RLBlocked.WithLabelValues(c.FullPath()).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(window.Seconds()),
		})
		return false
	}
	RLRequests.WithLabelValues(c.FullPath()).Inc()
	return true
}
