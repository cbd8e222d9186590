package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

const (
	stockKeyPrefix  = "stock:"
	rescoreQueueKey = "rescore:pending"

	lockRetryMin = 5 * time.Millisecond
	lockRetryMax = 100 * time.Millisecond
	releaseTTL   = 2 * time.Second
)

// Deletes the lock only if it still holds our token, so an expired holder cannot release a successor.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter holds the delivered-stock counters and the deferred rescoring set.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	key := stockKeyPrefix + productID
	return r.client.IncrBy(ctx, key, int64(quantity)).Err()
}

func (r *RedisAdapter) Defer(ctx context.Context, vendorID string) error {
	return r.client.SAdd(ctx, rescoreQueueKey, vendorID).Err()
}

func (r *RedisAdapter) Pop(ctx context.Context, n int) ([]string, error) {
	ids, err := r.client.SPopN(ctx, rescoreQueueKey, int64(n)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return ids, err
}

// RedisLocker is a single-instance Redis lock: SET NX PX with a random token.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: log.WithComponent("redis_locker")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	backoff := lockRetryMin

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().Add(backoff).After(deadline) {
			return nil, fmt.Errorf("acquire %s: %w", key, port.ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, lockRetryMax)
	}
}

func (l *RedisLocker) release(key, token string) {
	// caller's context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), releaseTTL)
	defer cancel()
	deleted, err := releaseLockScript.Run(ctx, l.client, []string{key}, token).Int()
	switch {
	case err != nil:
		// the lease stays until its TTL runs out
		l.logger.Warn("Lock release failed", "key", key, "ttl", l.ttl, "error", err)
	case deleted == 0:
		l.logger.Warn("Lock expired before release", "key", key, "ttl", l.ttl)
	}
}
