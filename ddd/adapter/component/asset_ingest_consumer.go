package component

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/manager"
)

func init() {
	manager.RegisterComponentPlugin(&AssetIngestConsumerPlugin{})
}

// AssetIngestConsumerPlugin 消费 asset.ingested，为就绪的视频生成转码任务图
type AssetIngestConsumerPlugin struct{}

func (p *AssetIngestConsumerPlugin) Name() string { return "assetIngestConsumer" }

func (p *AssetIngestConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil || !deps.Config.Kafka.Enabled {
		return nil
	}
	cfg := deps.Config.Kafka
	videoApp := app.DefaultVideoApp()
	return &kafkaConsumer{
		name:            p.Name(),
		topic:           cfg.Topics.AssetIngested,
		groupID:         cfg.GroupID,
		commitOnDecode:  cfg.CommitOnDecodeError,
		commitOnProcess: cfg.CommitOnProcessError,
		handle: func(ctx context.Context, msg kafkago.Message) error {
			return handleAssetIngested(ctx, videoApp, msg)
		},
	}
}

func handleAssetIngested(ctx context.Context, videoApp app.VideoApp, msg kafkago.Message) error {
	var m cqe.AssetIngestedMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}

	logger.Infof("Asset ingested message received video_uuid=%s priority=%d", m.VideoUUID, m.Priority)
	created, err := videoApp.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: m.VideoUUID, Priority: m.Priority})
	if err != nil {
		return err
	}
	logger.Infof("Transcoding jobs created video_uuid=%s jobs=%d", m.VideoUUID, len(created.Jobs))
	return nil
}
