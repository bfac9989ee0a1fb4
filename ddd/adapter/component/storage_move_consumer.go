package component

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/infrastructure/queue"
	"transcode-orchestrator/pkg/manager"
)

func init() {
	manager.RegisterComponentPlugin(&StorageMoveConsumerPlugin{})
}

// StorageMoveConsumerPlugin 消费 asset.storage-move 并执行迁移
type StorageMoveConsumerPlugin struct{}

func (p *StorageMoveConsumerPlugin) Name() string { return "storageMoveConsumer" }

func (p *StorageMoveConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil || !deps.Config.Kafka.Enabled || !deps.Config.ObjectStorage.Enabled {
		return nil
	}
	cfg := deps.Config.Kafka
	videoApp := app.DefaultVideoApp()
	return &kafkaConsumer{
		name:           p.Name(),
		topic:          cfg.Topics.StorageMove,
		groupID:        cfg.GroupID,
		commitOnDecode: cfg.CommitOnDecodeError,
		// 失败时视频已进入迁移失败状态，重复消费没有意义
		commitOnProcess: true,
		handle: func(ctx context.Context, msg kafkago.Message) error {
			var m queue.StorageMoveMessage
			if err := json.Unmarshal(msg.Value, &m); err != nil || m.VideoUUID == "" {
				return fmt.Errorf("%w: %s", errDecode, string(msg.Value))
			}
			return videoApp.MoveToExternalStorage(ctx, m.VideoUUID)
		},
	}
}
