package repo

import (
	"context"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
)

// JobInfoRepository 视频级任务计数仓储接口。
// 增减均为单行原子更新；减到负数返回 entity.ErrCounterUnderflow 且不修改数据。
type JobInfoRepository interface {
	// Get 不存在时返回全零计数
	Get(ctx context.Context, videoUUID string) (*entity.JobInfo, error)

	// Increase 计数加一，首次使用时创建记录，返回新值
	Increase(ctx context.Context, videoUUID string, counter vo.JobInfoCounter) (int, error)

	// Decrease 计数减一，返回新值
	Decrease(ctx context.Context, videoUUID string, counter vo.JobInfoCounter) (int, error)
}
