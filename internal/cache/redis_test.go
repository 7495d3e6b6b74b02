package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilClientFailsOpen(t *testing.T) {
	ctx := context.Background()
	cd := NewCooldown(nil, "cd:")
	assert.True(t, cd.Allow(ctx, "u1", time.Minute))
	assert.True(t, cd.Allow(ctx, "u1", time.Minute))

	var nilCooldown *Cooldown
	assert.True(t, nilCooldown.Allow(ctx, "u1", time.Minute))

	release, ok := NewLock(nil, "lock:").Acquire(ctx, "lottery", time.Second)
	assert.True(t, ok)
	release()
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisCooldownIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	client := Connect(addr, os.Getenv("REDIS_PASSWORD"), db)
	if client == nil {
		t.Skip("redis not reachable")
	}
	defer client.Close()

	ctx := context.Background()
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	cd := NewCooldown(client, "cd:")
	assert.True(t, cd.Allow(ctx, key, 500*time.Millisecond))
	assert.False(t, cd.Allow(ctx, key, 500*time.Millisecond))
	time.Sleep(700 * time.Millisecond)
	assert.True(t, cd.Allow(ctx, key, 500*time.Millisecond))

	lock := NewLock(client, "lock:")
	release, ok := lock.Acquire(ctx, key, time.Second)
	assert.True(t, ok)
	_, again := lock.Acquire(ctx, key, time.Second)
	assert.False(t, again)
	release()
	release2, ok := lock.Acquire(ctx, key, time.Second)
	assert.True(t, ok)
	release2()
}
