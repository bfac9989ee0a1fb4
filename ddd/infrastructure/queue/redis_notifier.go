package queue

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/pkg/logger"
)

// RedisNotifier 通过 Redis pub/sub 在多个实例之间传播"有新任务"，
// 每个实例只保持一条订阅连接，再由 LocalNotifier 分发给等待中的请求。
type RedisNotifier struct {
	client  *redis.Client
	channel string
	local   *LocalNotifier

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisNotifier 创建 Redis 通知器
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		local:   NewLocalNotifier(),
	}
}

var _ gateway.JobNotifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) Name() string { return "redisJobNotifier" }

// Start 建立订阅并开始转发
func (n *RedisNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pubsub != nil {
		return nil
	}
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	n.pubsub = pubsub
	n.done = make(chan struct{})
	go n.forward(pubsub.Channel(), n.done)
	logger.Infof("job notifier subscribed channel=%s", n.channel)
	return nil
}

func (n *RedisNotifier) forward(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for range ch {
		n.local.broadcast()
	}
}

// Stop 关闭订阅
func (n *RedisNotifier) Stop() error {
	n.mu.Lock()
	pubsub, done := n.pubsub, n.done
	n.pubsub, n.done = nil, nil
	n.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// NotifyJobsAvailable 发布通知，本实例的订阅者经由订阅连接收到
func (n *RedisNotifier) NotifyJobsAvailable(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, "1").Err(); err != nil {
		// Redis 不可用时至少唤醒本实例
		n.local.broadcast()
		return err
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	return n.local.Subscribe(ctx)
}
