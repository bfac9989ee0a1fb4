package app

import (
	"context"
	"sync"

	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/ddd/application/dto"
	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/errno"
)

var (
	singleJobAdminApp JobAdminApp
	onceJobAdminApp   sync.Once
)

// JobAdminApp 管理端任务查询与取消
type JobAdminApp interface {
	List(ctx context.Context, query *cqe.ListJobsQuery) (*dto.AdminJobListDTO, error)
	Get(ctx context.Context, jobUUID string) (*dto.AdminJobDTO, error)
	// Cancel 取消任务，子任务级联为 parent_cancelled
	Cancel(ctx context.Context, jobUUID string) (*dto.AdminJobDTO, error)
}

type jobAdminAppImpl struct {
	engine *Engine
}

func DefaultJobAdminApp() JobAdminApp {
	assert.NotCircular()
	onceJobAdminApp.Do(func() {
		singleJobAdminApp = NewJobAdminApp(DefaultEngine())
	})
	assert.NotNil(singleJobAdminApp)
	return singleJobAdminApp
}

func NewJobAdminApp(engine *Engine) JobAdminApp {
	return &jobAdminAppImpl{engine: engine}
}

func (a *jobAdminAppImpl) List(ctx context.Context, query *cqe.ListJobsQuery) (*dto.AdminJobListDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	jobs, total, err := a.engine.Jobs.List(ctx, query.Filter())
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewAdminJobListDTO(jobs, total), nil
}

func (a *jobAdminAppImpl) Get(ctx context.Context, jobUUID string) (*dto.AdminJobDTO, error) {
	if jobUUID == "" {
		return nil, errno.ErrJobUUIDRequired
	}
	job, err := a.engine.Jobs.Get(ctx, jobUUID)
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewAdminJobDTO(job), nil
}

func (a *jobAdminAppImpl) Cancel(ctx context.Context, jobUUID string) (*dto.AdminJobDTO, error) {
	if jobUUID == "" {
		return nil, errno.ErrJobUUIDRequired
	}
	job, err := a.engine.Jobs.Cancel(ctx, jobUUID)
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewAdminJobDTO(job), nil
}
