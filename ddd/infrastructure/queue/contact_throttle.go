package queue

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/pkg/redisclient"
)

const contactKeyPrefix = "runner:contact:"

// RedisContactThrottle 多实例共享的联系时间写入节流
type RedisContactThrottle struct {
	client *redisclient.Client
	window time.Duration
}

// NewRedisContactThrottle 创建 Redis 节流器
func NewRedisContactThrottle(client *redisclient.Client, window time.Duration) *RedisContactThrottle {
	return &RedisContactThrottle{client: client, window: window}
}

var _ gateway.ContactThrottle = (*RedisContactThrottle)(nil)

// Allow 窗口内第一次联系返回 true
func (t *RedisContactThrottle) Allow(ctx context.Context, runnerUUID string) (bool, error) {
	return t.client.SetOnce(ctx, contactKeyPrefix+runnerUUID, t.window)
}

// LocalContactThrottle 单实例节流
type LocalContactThrottle struct {
	seen *expirable.LRU[string, struct{}]
}

// NewLocalContactThrottle 创建进程内节流器
func NewLocalContactThrottle(size int, window time.Duration) *LocalContactThrottle {
	return &LocalContactThrottle{seen: expirable.NewLRU[string, struct{}](size, nil, window)}
}

var _ gateway.ContactThrottle = (*LocalContactThrottle)(nil)

func (t *LocalContactThrottle) Allow(ctx context.Context, runnerUUID string) (bool, error) {
	if t.seen.Contains(runnerUUID) {
		return false, nil
	}
	t.seen.Add(runnerUUID, struct{}{})
	return true, nil
}
