package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/redis"
)

var (
	// ErrRemoteMiss is returned by a Remote when the key does not exist.
	ErrRemoteMiss = errors.New("cache: remote miss")
	// ErrRemoteRejected marks a failure of one command on a store that is
	// otherwise serving. It does not put the manager into degraded mode.
	ErrRemoteRejected = errors.New("cache: remote rejected command")
)

// Remote is the distributed cache layer. Only single-key get, set and
// delete with TTL are required.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// KeyCounter is implemented by remotes that can report their key count.
type KeyCounter interface {
	CountKeys(ctx context.Context, pattern string) (int64, error)
}

// RedisRemote adapts the shared redis client to Remote.
type RedisRemote struct {
	client *redis.Client
}

// NewRedisRemote wraps a redis client.
func NewRedisRemote(client *redis.Client) *RedisRemote {
	return &RedisRemote{client: client}
}

func (r *RedisRemote) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key)
	if redis.IsNil(err) {
		return nil, ErrRemoteMiss
	}
	return val, classify(err)
}

func (r *RedisRemote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return classify(r.client.Set(ctx, key, value, ttl))
}

func (r *RedisRemote) Del(ctx context.Context, key string) error {
	_, err := r.client.Del(ctx, key)
	return classify(err)
}

func (r *RedisRemote) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *RedisRemote) CountKeys(ctx context.Context, pattern string) (int64, error) {
	return r.client.CountKeys(ctx, pattern)
}

func classify(err error) error {
	if redis.IsRejected(err) {
		return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
	}
	return err
}
