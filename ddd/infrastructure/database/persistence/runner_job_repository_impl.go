package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/convertor"
	"transcode-orchestrator/ddd/infrastructure/database/dao"
)

// runnerJobRepositoryImpl runner job 仓储实现
type runnerJobRepositoryImpl struct {
	jobDao    *dao.RunnerJobDao
	convertor *convertor.RunnerJobConvertor
}

// NewRunnerJobRepository 创建 runner job 仓储实现
func NewRunnerJobRepository(db *gorm.DB) repo.RunnerJobRepository {
	return &runnerJobRepositoryImpl{
		jobDao:    dao.NewRunnerJobDao(db),
		convertor: convertor.NewRunnerJobConvertor(),
	}
}

// Create 保存新 job
func (r *runnerJobRepositoryImpl) Create(ctx context.Context, job *entity.RunnerJob) error {
	if err := r.jobDao.Create(ctx, r.convertor.EntityToPO(job)); err != nil {
		return fmt.Errorf("failed to create runner job: %w", err)
	}
	return nil
}

// GetByUUID 根据UUID获取job
func (r *runnerJobRepositoryImpl) GetByUUID(ctx context.Context, jobUUID string) (*entity.RunnerJob, error) {
	p, err := r.jobDao.GetByJobUUID(ctx, jobUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.convertor.POToEntity(p), nil
}

// ListAvailable 获取待领取job
func (r *runnerJobRepositoryImpl) ListAvailable(ctx context.Context, limit int, types []vo.JobType) ([]*entity.RunnerJob, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	list, err := r.jobDao.ListPending(ctx, limit, names)
	if err != nil {
		return nil, err
	}
	return r.convertor.POListToEntityList(list), nil
}

// UpdateIfState 条件写入
func (r *runnerJobRepositoryImpl) UpdateIfState(ctx context.Context, job *entity.RunnerJob, expected vo.JobState) error {
	affected, err := r.jobDao.UpdateIfState(ctx, r.convertor.EntityToPO(job), expected.String())
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.NewStaleJobError(job.JobUUID(), expected.String())
	}
	job.MarkStored()
	return nil
}

// ReleaseChildren 释放等待中的子任务
func (r *runnerJobRepositoryImpl) ReleaseChildren(ctx context.Context, parentUUID string) (int64, error) {
	return r.jobDao.ReleaseChildren(ctx, parentUUID)
}

// ListChildren 获取直接子任务
func (r *runnerJobRepositoryImpl) ListChildren(ctx context.Context, parentUUID string) ([]*entity.RunnerJob, error) {
	list, err := r.jobDao.ListByParent(ctx, parentUUID)
	if err != nil {
		return nil, err
	}
	return r.convertor.POListToEntityList(list), nil
}

// ListProcessingByRunner 获取 runner 正在处理的 job
func (r *runnerJobRepositoryImpl) ListProcessingByRunner(ctx context.Context, runnerUUID string) ([]*entity.RunnerJob, error) {
	list, err := r.jobDao.ListProcessingByRunner(ctx, runnerUUID)
	if err != nil {
		return nil, err
	}
	return r.convertor.POListToEntityList(list), nil
}

// ListStaleProcessing 获取超时未上报的处理中 job
func (r *runnerJobRepositoryImpl) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*entity.RunnerJob, error) {
	list, err := r.jobDao.ListStaleProcessing(ctx, before, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.POListToEntityList(list), nil
}

// List 管理端分页查询
func (r *runnerJobRepositoryImpl) List(ctx context.Context, filter repo.RunnerJobFilter) ([]*entity.RunnerJob, int64, error) {
	states := make([]string, 0, len(filter.States))
	for _, s := range filter.States {
		states = append(states, s.String())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	list, total, err := r.jobDao.List(ctx, states, filter.VideoUUID, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	return r.convertor.POListToEntityList(list), total, nil
}
