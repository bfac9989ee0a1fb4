package gateway

import (
	"context"
	"time"

	"transcode-orchestrator/ddd/domain/vo"
)

// AssetStateChangedEvent 视频状态变更事件
type AssetStateChangedEvent struct {
	VideoUUID  string        `json:"videoUUID"`
	From       vo.VideoState `json:"from,omitempty"`
	To         vo.VideoState `json:"to"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// AssetEventPublisher 视频状态事件发布
type AssetEventPublisher interface {
	PublishStateChanged(ctx context.Context, event AssetStateChangedEvent) error
}

// StorageMoveQueue 外部存储迁移任务队列
type StorageMoveQueue interface {
	EnqueueMove(ctx context.Context, videoUUID string) error
}
