package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/infrastructure/database/convertor"
	"transcode-orchestrator/ddd/infrastructure/database/dao"
)

// runnerRepositoryImpl runner 仓储实现
type runnerRepositoryImpl struct {
	runnerDao *dao.RunnerDao
	convertor *convertor.RunnerConvertor
}

// NewRunnerRepository 创建 runner 仓储实现
func NewRunnerRepository(db *gorm.DB) repo.RunnerRepository {
	return &runnerRepositoryImpl{
		runnerDao: dao.NewRunnerDao(db),
		convertor: convertor.NewRunnerConvertor(),
	}
}

func (r *runnerRepositoryImpl) Create(ctx context.Context, runner *entity.Runner) error {
	if err := r.runnerDao.Create(ctx, r.convertor.EntityToPO(runner)); err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	return nil
}

func (r *runnerRepositoryImpl) GetByUUID(ctx context.Context, runnerUUID string) (*entity.Runner, error) {
	p, err := r.runnerDao.GetByRunnerUUID(ctx, runnerUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.convertor.POToEntity(p), nil
}

func (r *runnerRepositoryImpl) GetByToken(ctx context.Context, token string) (*entity.Runner, error) {
	p, err := r.runnerDao.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.convertor.POToEntity(p), nil
}

func (r *runnerRepositoryImpl) Delete(ctx context.Context, runner *entity.Runner) error {
	return r.runnerDao.Delete(ctx, runner.RunnerUUID())
}

func (r *runnerRepositoryImpl) TouchContact(ctx context.Context, runnerUUID string, at time.Time) error {
	return r.runnerDao.UpdateLastContact(ctx, runnerUUID, at)
}

func (r *runnerRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*entity.Runner, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	list, total, err := r.runnerDao.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.convertor.POListToEntityList(list), total, nil
}

func (r *runnerRepositoryImpl) CreateRegistrationToken(ctx context.Context, token *entity.RegistrationToken) error {
	return r.runnerDao.CreateRegistrationToken(ctx, r.convertor.RegistrationTokenToPO(token))
}

func (r *runnerRepositoryImpl) GetRegistrationToken(ctx context.Context, token string) (*entity.RegistrationToken, error) {
	p, err := r.runnerDao.GetRegistrationToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.convertor.POToRegistrationToken(p), nil
}

func (r *runnerRepositoryImpl) ListRegistrationTokens(ctx context.Context) ([]*entity.RegistrationToken, error) {
	list, err := r.runnerDao.ListRegistrationTokens(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]*entity.RegistrationToken, 0, len(list))
	for _, p := range list {
		tokens = append(tokens, r.convertor.POToRegistrationToken(p))
	}
	return tokens, nil
}
