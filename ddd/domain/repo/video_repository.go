package repo

import (
	"context"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
)

// VideoRepository 视频仓储接口，只覆盖编排引擎拥有的字段
type VideoRepository interface {
	// GetByUUID 获取视频及其文件列表，不存在返回 nil, nil
	GetByUUID(ctx context.Context, videoUUID string) (*entity.Video, error)

	// UpdateStateIf 当前状态属于 from 时改为 to，返回是否发生了修改
	UpdateStateIf(ctx context.Context, videoUUID string, from []vo.VideoState, to vo.VideoState) (bool, error)

	// UpsertFile 写入一个清晰度文件，同类型同清晰度覆盖
	UpsertFile(ctx context.Context, videoUUID string, file vo.VideoFile) error

	// DeleteFiles 清空文件列表
	DeleteFiles(ctx context.Context, videoUUID string) error

	// UpdateDuration 写回时长
	UpdateDuration(ctx context.Context, videoUUID string, duration float64) error

	// ReplaceInput 替换源文件名
	ReplaceInput(ctx context.Context, videoUUID, filename string) error
}
