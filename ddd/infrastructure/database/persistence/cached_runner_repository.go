package persistence

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
)

// cachedRunnerRepository 按 runner token 缓存查询结果，每个调度请求都要认证一次
type cachedRunnerRepository struct {
	repo.RunnerRepository
	byToken *expirable.LRU[string, *entity.Runner]
}

// NewCachedRunnerRepository 给 runner 仓储加一层进程内 LRU
func NewCachedRunnerRepository(inner repo.RunnerRepository, size int, ttl time.Duration) repo.RunnerRepository {
	return &cachedRunnerRepository{
		RunnerRepository: inner,
		byToken:          expirable.NewLRU[string, *entity.Runner](size, nil, ttl),
	}
}

func (r *cachedRunnerRepository) GetByToken(ctx context.Context, token string) (*entity.Runner, error) {
	if runner, ok := r.byToken.Get(token); ok {
		return runner, nil
	}
	runner, err := r.RunnerRepository.GetByToken(ctx, token)
	if err != nil || runner == nil {
		return runner, err
	}
	r.byToken.Add(token, runner)
	return runner, nil
}

func (r *cachedRunnerRepository) Delete(ctx context.Context, runner *entity.Runner) error {
	r.byToken.Remove(runner.Token())
	if err := r.RunnerRepository.Delete(ctx, runner); err != nil {
		return err
	}
	r.byToken.Remove(runner.Token())
	return nil
}
