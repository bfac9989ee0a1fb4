package resource

import (
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/kafka"
	"transcode-orchestrator/pkg/manager"
)

// KafkaResource 未启用 kafka 时不建立连接
type KafkaResource struct {
	opened bool
}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil || !cfg.Kafka.Enabled {
		return
	}
	kafka.DefaultClient().MustOpen()
	r.opened = true
}

func (r *KafkaResource) Close() {
	if r.opened {
		kafka.DefaultClient().Close()
	}
}
