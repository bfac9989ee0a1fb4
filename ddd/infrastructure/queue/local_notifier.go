package queue

import (
	"context"
	"sync"

	"transcode-orchestrator/ddd/domain/gateway"
)

// LocalNotifier 进程内广播，单实例部署或作为 Redis 通知的本地分发层
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewLocalNotifier 创建进程内通知器
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan struct{}]struct{})}
}

var _ gateway.JobNotifier = (*LocalNotifier)(nil)

// NotifyJobsAvailable 唤醒所有等待中的订阅者
func (n *LocalNotifier) NotifyJobsAvailable(ctx context.Context) error {
	n.broadcast()
	return nil
}

func (n *LocalNotifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		// 缓冲为 1，已有未读通知时丢弃
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe 订阅通知
func (n *LocalNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Subscribers 当前订阅数
func (n *LocalNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
