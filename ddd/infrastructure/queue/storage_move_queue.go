package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/pkg/kafka"
	"transcode-orchestrator/pkg/logger"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("queue is closed")

// StorageMoveMessage 外部存储迁移消息
type StorageMoveMessage struct {
	VideoUUID   string    `json:"videoUUID"`
	RequestedAt time.Time `json:"requestedAt"`
}

// KafkaStorageMoveQueue 迁移任务写入 Kafka，由迁移消费者执行
type KafkaStorageMoveQueue struct {
	client *kafka.Client
	topic  string
}

// NewKafkaStorageMoveQueue 创建 Kafka 迁移队列
func NewKafkaStorageMoveQueue(client *kafka.Client, topic string) *KafkaStorageMoveQueue {
	return &KafkaStorageMoveQueue{client: client, topic: topic}
}

var _ gateway.StorageMoveQueue = (*KafkaStorageMoveQueue)(nil)

func (q *KafkaStorageMoveQueue) EnqueueMove(ctx context.Context, videoUUID string) error {
	return q.client.ProduceJSON(ctx, q.topic, videoUUID, StorageMoveMessage{
		VideoUUID:   videoUUID,
		RequestedAt: time.Now(),
	})
}

// MoveHandler 执行一次迁移
type MoveHandler func(ctx context.Context, videoUUID string) error

// MemoryStorageMoveQueue 未启用 Kafka 时的进程内迁移队列
type MemoryStorageMoveQueue struct {
	ch      chan string
	workers int

	mu      sync.RWMutex
	handler MoveHandler
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMemoryStorageMoveQueue 创建进程内迁移队列
func NewMemoryStorageMoveQueue(capacity, workers int) *MemoryStorageMoveQueue {
	if capacity <= 0 {
		capacity = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &MemoryStorageMoveQueue{ch: make(chan string, capacity), workers: workers}
}

var _ gateway.StorageMoveQueue = (*MemoryStorageMoveQueue)(nil)

// Bind 设置迁移执行函数，必须在 Start 之前调用
func (q *MemoryStorageMoveQueue) Bind(h MoveHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

func (q *MemoryStorageMoveQueue) EnqueueMove(ctx context.Context, videoUUID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- videoUUID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryStorageMoveQueue) Name() string { return "memoryStorageMoveQueue" }

func (q *MemoryStorageMoveQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return nil
	}
	if q.handler == nil {
		return errors.New("storage move queue has no handler")
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(runCtx, q.handler)
	}
	return nil
}

func (q *MemoryStorageMoveQueue) work(ctx context.Context, h MoveHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case videoUUID := <-q.ch:
			if err := h(ctx, videoUUID); err != nil {
				logger.Warnf("storage move failed video_uuid=%s error=%v", videoUUID, err)
			}
		}
	}
}

func (q *MemoryStorageMoveQueue) Stop() error {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.closed = true
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	return nil
}
