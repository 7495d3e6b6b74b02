// Package cache holds the optional Redis-backed helpers. Every helper fails
// open: with no client, or on a Redis error, callers proceed as if allowed.
package cache

import (
	"context"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// Connect returns a client for addr, or nil when addr is empty or the server
// does not answer a ping.
func Connect(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", addr)
	return client
}

// Cooldown is a per-key throttle backed by SET NX PX.
type Cooldown struct {
	client *redis.Client
	prefix string
}

func NewCooldown(client *redis.Client, prefix string) *Cooldown {
	return &Cooldown{client: client, prefix: prefix}
}

// Allow reports whether key is outside its cooldown window and, if so,
// starts a new window.
func (c *Cooldown) Allow(ctx context.Context, key string, window time.Duration) bool {
	if c == nil || c.client == nil || window <= 0 {
		return true
	}
	ok, err := c.client.SetNX(ctx, c.prefix+key, 1, window).Result()
	if err != nil {
		logger.Debug("cooldown check failed, allowing", "key", key, "error", err)
		return true
	}
	return ok
}

// Lock is a best-effort distributed mutex keyed by name.
type Lock struct {
	client *redis.Client
	prefix string
}

func NewLock(client *redis.Client, prefix string) *Lock {
	return &Lock{client: client, prefix: prefix}
}

// Acquire tries to take name for ttl. The returned release func is always
// non-nil. acquired is false only when another holder has the lock.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, true
	}
	key := l.prefix + name
	token := time.Now().UnixNano()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if v, err := l.client.Get(ctx, key).Int64(); err == nil && v == token {
			l.client.Del(ctx, key)
		}
	}, true
}
