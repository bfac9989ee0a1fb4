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
	singleRunnerAdminApp RunnerAdminApp
	onceRunnerAdminApp   sync.Once
)

// RunnerAdminApp 管理端 runner 与注册令牌
type RunnerAdminApp interface {
	CreateRegistrationToken(ctx context.Context) (*dto.RegistrationTokenDTO, error)
	ListRegistrationTokens(ctx context.Context) ([]*dto.RegistrationTokenDTO, error)
	ListRunners(ctx context.Context, query *cqe.PageQuery) (*dto.RunnerListDTO, error)
}

type runnerAdminAppImpl struct {
	engine *Engine
}

func DefaultRunnerAdminApp() RunnerAdminApp {
	assert.NotCircular()
	onceRunnerAdminApp.Do(func() {
		singleRunnerAdminApp = NewRunnerAdminApp(DefaultEngine())
	})
	assert.NotNil(singleRunnerAdminApp)
	return singleRunnerAdminApp
}

func NewRunnerAdminApp(engine *Engine) RunnerAdminApp {
	return &runnerAdminAppImpl{engine: engine}
}

func (a *runnerAdminAppImpl) CreateRegistrationToken(ctx context.Context) (*dto.RegistrationTokenDTO, error) {
	token, err := a.engine.Runners.CreateRegistrationToken(ctx)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewRegistrationTokenDTO(token), nil
}

func (a *runnerAdminAppImpl) ListRegistrationTokens(ctx context.Context) ([]*dto.RegistrationTokenDTO, error) {
	tokens, err := a.engine.Runners.ListRegistrationTokens(ctx)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	result := make([]*dto.RegistrationTokenDTO, 0, len(tokens))
	for _, t := range tokens {
		result = append(result, dto.NewRegistrationTokenDTO(t))
	}
	return result, nil
}

func (a *runnerAdminAppImpl) ListRunners(ctx context.Context, query *cqe.PageQuery) (*dto.RunnerListDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	runners, total, err := a.engine.Runners.List(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	result := &dto.RunnerListDTO{Total: total, Data: make([]*dto.RunnerDTO, 0, len(runners))}
	for _, r := range runners {
		result.Data = append(result.Data, dto.NewRunnerDTO(r))
	}
	return result, nil
}
