package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// redisRateLimit is a fixed-window limiter using INCR/EXPIRE.
// key format: rl:<name>:<window_seconds>:<identifier>
func redisRateLimit(client *redis.Client, name string, maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	prefix := "rl:" + name + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":"
	return func(c *gin.Context) {
		ident, ok := key(c)
		if !ok {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		k := prefix + ident

		val, err := client.Incr(ctx, k).Result()
		if err != nil {
			// fail-open
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			client.Expire(ctx, k, window)
		}

		if !allow(c, val, maxRequests, window) {
			return
		}
		c.Next()
	}
}
