package repo

import (
	"context"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
)

// RunnerJobFilter 管理端查询条件
type RunnerJobFilter struct {
	States    []vo.JobState
	VideoUUID string
	Limit     int
	Offset    int
}

// RunnerJobRepository runner job 仓储接口
type RunnerJobRepository interface {
	// Create 保存新 job
	Create(ctx context.Context, job *entity.RunnerJob) error

	// GetByUUID 根据UUID获取job，不存在返回 nil, nil
	GetByUUID(ctx context.Context, jobUUID string) (*entity.RunnerJob, error)

	// ListAvailable 获取待领取job，按优先级升序、创建时间升序
	ListAvailable(ctx context.Context, limit int, types []vo.JobType) ([]*entity.RunnerJob, error)

	// UpdateIfState 仅当存储中的状态等于 expected 且版本号与加载时一致时写入，
	// 否则返回 entity.ErrStaleJob 冲突；成功后 job 的版本号随之前进
	UpdateIfState(ctx context.Context, job *entity.RunnerJob, expected vo.JobState) error

	// ReleaseChildren 将等待该父任务的子任务批量置为 pending，返回影响行数
	ReleaseChildren(ctx context.Context, parentUUID string) (int64, error)

	// ListChildren 获取直接子任务
	ListChildren(ctx context.Context, parentUUID string) ([]*entity.RunnerJob, error)

	// ListProcessingByRunner 获取某个 runner 正在处理的 job
	ListProcessingByRunner(ctx context.Context, runnerUUID string) ([]*entity.RunnerJob, error)

	// ListStaleProcessing 获取最后活跃时间早于 before 的处理中 job
	ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*entity.RunnerJob, error)

	// List 管理端分页查询
	List(ctx context.Context, filter RunnerJobFilter) ([]*entity.RunnerJob, int64, error)
}
