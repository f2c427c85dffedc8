package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"
)

var ErrNotInitialized = errors.New("redis: client not initialized")

// 服务端暂时无法处理请求时的错误前缀
var unavailablePrefixes = []string{"LOADING", "READONLY", "CLUSTERDOWN", "MASTERDOWN", "TRYAGAIN", "BUSY"}

// IsNil 判断是否是 Key 不存在错误
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsUnavailable reports errors after which the store should not be used for
// a while: a closed or missing client, a broken connection, a timeout, or a
// server that is loading, read-only or without a healthy cluster.
func IsUnavailable(err error) bool {
	if err == nil || IsNil(err) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		msg := reply.Error()
		for _, p := range unavailablePrefixes {
			if strings.HasPrefix(msg, p) {
				return true
			}
		}
		return false
	}
	return true
}

// IsRejected reports an error reply to a single command from a server that
// is otherwise healthy, such as WRONGTYPE or OOM.
func IsRejected(err error) bool {
	if err == nil || IsNil(err) {
		return false
	}
	var reply redis.Error
	return errors.As(err, &reply) && !IsUnavailable(err)
}
