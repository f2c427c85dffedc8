package redis

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Get 读取原始字节；key 不存在时返回 redis.Nil（用 IsNil 判断）
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil && !IsNil(err) {
		c.logger.Debug("redis get failed", zap.String("key", key), zap.Error(err))
	}
	return val, err
}

// Set 写入原始字节并设置过期时间
func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	err := c.rdb.Set(ctx, key, value, expiration).Err()
	if err != nil {
		c.logger.Debug("redis set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("redis del failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return n, err
}

// TTL 获取剩余过期时间
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.TTL(ctx, key).Result()
}

// CountKeys 用 SCAN 统计匹配 pattern 的 key 数量，不阻塞服务端
func (c *Client) CountKeys(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return total, err
		}
		total += int64(len(keys))
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
