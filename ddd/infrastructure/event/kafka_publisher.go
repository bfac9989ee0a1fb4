package event

import (
	"context"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/pkg/kafka"
	"transcode-orchestrator/pkg/logger"
)

// KafkaAssetEventPublisher 视频状态变更写入 Kafka，以 videoUUID 作为消息 key
type KafkaAssetEventPublisher struct {
	client *kafka.Client
	topic  string
}

// NewKafkaAssetEventPublisher 创建事件发布器
func NewKafkaAssetEventPublisher(client *kafka.Client, topic string) *KafkaAssetEventPublisher {
	return &KafkaAssetEventPublisher{client: client, topic: topic}
}

var _ gateway.AssetEventPublisher = (*KafkaAssetEventPublisher)(nil)

func (p *KafkaAssetEventPublisher) PublishStateChanged(ctx context.Context, event gateway.AssetStateChangedEvent) error {
	if err := p.client.ProduceJSON(ctx, p.topic, event.VideoUUID, event); err != nil {
		logger.Warnf("publish asset state event failed video_uuid=%s to=%s error=%v", event.VideoUUID, event.To, err)
		return err
	}
	return nil
}

// LogAssetEventPublisher 未启用 Kafka 时只记录日志
type LogAssetEventPublisher struct{}

var _ gateway.AssetEventPublisher = LogAssetEventPublisher{}

func (LogAssetEventPublisher) PublishStateChanged(ctx context.Context, event gateway.AssetStateChangedEvent) error {
	logger.Info("asset state changed", map[string]interface{}{
		"video_uuid": event.VideoUUID,
		"from":       event.From.String(),
		"to":         event.To.String(),
	})
	return nil
}
