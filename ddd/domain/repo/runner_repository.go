package repo

import (
	"context"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
)

// RunnerRepository runner 与注册令牌仓储接口
type RunnerRepository interface {
	// Create 保存新注册的 runner
	Create(ctx context.Context, runner *entity.Runner) error

	// GetByUUID 不存在返回 nil, nil
	GetByUUID(ctx context.Context, runnerUUID string) (*entity.Runner, error)

	// GetByToken 按 runner token 查询，不存在返回 nil, nil
	GetByToken(ctx context.Context, token string) (*entity.Runner, error)

	// Delete 注销 runner
	Delete(ctx context.Context, runner *entity.Runner) error

	// TouchContact 更新最近联系时间
	TouchContact(ctx context.Context, runnerUUID string, at time.Time) error

	// List 分页查询
	List(ctx context.Context, limit, offset int) ([]*entity.Runner, int64, error)

	// CreateRegistrationToken 保存注册令牌
	CreateRegistrationToken(ctx context.Context, token *entity.RegistrationToken) error

	// GetRegistrationToken 不存在返回 nil, nil
	GetRegistrationToken(ctx context.Context, token string) (*entity.RegistrationToken, error)

	// ListRegistrationTokens 全部注册令牌
	ListRegistrationTokens(ctx context.Context) ([]*entity.RegistrationToken, error)
}
