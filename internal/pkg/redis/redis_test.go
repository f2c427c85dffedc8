package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
)

const testRedisAddr = "localhost:6379"

// setupTestClient 连接本地 redis；不可用时跳过
func setupTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.MasterAddr = testRedisAddr
	cfg.DialTimeout = 300 * time.Millisecond

	client, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "sentinel without master", mutate: func(c *Config) {
			c.Mode = ModeSentinel
			c.SentinelAddrs = []string{"a:26379"}
		}, wantErr: true},
		{name: "cluster without addrs", mutate: func(c *Config) { c.Mode = ModeCluster }, wantErr: true},
		{name: "cluster", mutate: func(c *Config) {
			c.Mode = ModeCluster
			c.ClusterAddrs = []string{"a:7000", "b:7000"}
		}},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "read-write" }, wantErr: true},
		{name: "bad db", mutate: func(c *Config) { c.DB = 16 }, wantErr: true},
		{name: "idle exceeds pool", mutate: func(c *Config) { c.MinIdleConns = c.PoolSize + 1 }, wantErr: true},
		{name: "tls without material", mutate: func(c *Config) { c.EnableTLS = true }, wantErr: true},
		{name: "backoff inverted", mutate: func(c *Config) { c.MinRetryBackoff = time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLazyDoesNotDial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MasterAddr = "127.0.0.1:1"

	client, err := NewLazy(cfg, logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client.Universal())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, client.Ping(ctx))
	assert.NoError(t, client.Close())
}

func TestStringRoundTrip(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	key := "test:seo:" + uuid.NewString()

	require.NoError(t, client.Set(ctx, key, []byte("payload"), time.Minute))

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	ttl, err := client.TTL(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	n, err := client.CountKeys(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := client.Del(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))
}

type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
		rejected    bool
	}{
		{name: "nil"},
		{name: "missing key", err: goredis.Nil},
		{name: "closed client", err: goredis.ErrClosed, unavailable: true},
		{name: "not initialized", err: ErrNotInitialized, unavailable: true},
		{name: "connection dropped", err: fmt.Errorf("read: %w", io.EOF), unavailable: true},
		{name: "dial failure", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, unavailable: true},
		{name: "timeout", err: context.DeadlineExceeded, unavailable: true},
		{name: "loading", err: replyError("LOADING Redis is loading the dataset in memory"), unavailable: true},
		{name: "readonly replica", err: replyError("READONLY You can't write against a read only replica."), unavailable: true},
		{name: "wrong type", err: replyError("WRONGTYPE Operation against a key holding the wrong kind of value"), rejected: true},
		{name: "out of memory", err: replyError("OOM command not allowed when used memory > 'maxmemory'."), rejected: true},
		{name: "unknown error", err: errors.New("boom"), unavailable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unavailable, IsUnavailable(tt.err))
			assert.Equal(t, tt.rejected, IsRejected(tt.err))
		})
	}
}
