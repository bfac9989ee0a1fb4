package gateway

import (
	"context"

	"transcode-orchestrator/ddd/domain/vo"
)

// MediaProbe 媒体探测接口
type MediaProbe interface {
	// Probe 读取文件的时长、分辨率、帧率、编码与音频信息
	Probe(ctx context.Context, path string) (*vo.StreamMetadata, error)
}
