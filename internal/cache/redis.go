package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisClient wraps the redis.Client with connection pooling and metrics
type RedisClient struct {
	client *redis.Client
}

var _ Store = (*RedisClient)(nil)

// NewRedisClient connects and pings redis
func NewRedisClient(cfg config.RedisConfig) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return &RedisClient{client: client}, nil
}

func observe(operation string, start time.Time, err error) {
	if errors.Is(err, redis.Nil) {
		err = nil
	}
	metrics.RecordRedisOperation(operation, time.Since(start), err)
}

// Get retrieves a value, returning ErrMiss when the key is absent
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := rc.client.Get(ctx, key).Result()
	observe("get", start, err)
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// SetEx stores a value with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	start := time.Now()
	err := rc.client.Set(ctx, key, value, ttl).Err()
	observe("set", start, err)
	return err
}

// Del deletes one or more keys
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := rc.client.Del(ctx, keys...).Err()
	observe("del", start, err)
	return err
}

// DelPrefix deletes every key starting with prefix
func (rc *RedisClient) DelPrefix(ctx context.Context, prefix string) error {
	start := time.Now()
	var keys []string
	iter := rc.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	err := iter.Err()
	observe("scan", start, err)
	if err != nil {
		return err
	}
	return rc.Del(ctx, keys...)
}

// IncrWindow increments key and starts its expiry on the first hit of a window
func (rc *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	start := time.Now()
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	_, err := pipe.Exec(ctx)
	observe("incr", start, err)
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

// AcquireLock takes key with SET NX PX. The returned release func removes the
// lock only while it is still ours.
func (rc *RedisClient) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()

	start := time.Now()
	ok, err := rc.client.SetNX(ctx, key, token, ttl).Result()
	observe("setnx", start, err)
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, rc.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}
