package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// RunnerDao runner 数据访问对象
type RunnerDao struct {
	db *gorm.DB
}

// NewRunnerDao 创建 runner DAO
func NewRunnerDao(db *gorm.DB) *RunnerDao {
	return &RunnerDao{db: db}
}

// Create 创建runner
func (d *RunnerDao) Create(ctx context.Context, runner *po.RunnerPO) error {
	return d.db.WithContext(ctx).Create(runner).Error
}

// GetByRunnerUUID 根据UUID获取
func (d *RunnerDao) GetByRunnerUUID(ctx context.Context, runnerUUID string) (*po.RunnerPO, error) {
	var runner po.RunnerPO
	err := d.db.WithContext(ctx).Where("runner_uuid = ?", runnerUUID).First(&runner).Error
	if err != nil {
		return nil, err
	}
	return &runner, nil
}

// GetByToken 根据token获取
func (d *RunnerDao) GetByToken(ctx context.Context, token string) (*po.RunnerPO, error) {
	var runner po.RunnerPO
	err := d.db.WithContext(ctx).Where("token = ?", token).First(&runner).Error
	if err != nil {
		return nil, err
	}
	return &runner, nil
}

// Delete 删除runner
func (d *RunnerDao) Delete(ctx context.Context, runnerUUID string) error {
	return d.db.WithContext(ctx).Where("runner_uuid = ?", runnerUUID).Delete(&po.RunnerPO{}).Error
}

// UpdateLastContact 更新最近联系时间
func (d *RunnerDao) UpdateLastContact(ctx context.Context, runnerUUID string, at time.Time) error {
	return d.db.WithContext(ctx).
		Model(&po.RunnerPO{}).
		Where("runner_uuid = ?", runnerUUID).
		Updates(map[string]interface{}{
			"last_contact_at": at,
			"updated_at":      time.Now(),
		}).Error
}

// List 分页查询
func (d *RunnerDao) List(ctx context.Context, limit, offset int) ([]*po.RunnerPO, int64, error) {
	var (
		runners []*po.RunnerPO
		total   int64
	)
	if err := d.db.WithContext(ctx).Model(&po.RunnerPO{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := d.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&runners).Error
	return runners, total, err
}

// CreateRegistrationToken 创建注册令牌
func (d *RunnerDao) CreateRegistrationToken(ctx context.Context, token *po.RegistrationTokenPO) error {
	return d.db.WithContext(ctx).Create(token).Error
}

// GetRegistrationToken 根据令牌获取
func (d *RunnerDao) GetRegistrationToken(ctx context.Context, token string) (*po.RegistrationTokenPO, error) {
	var rt po.RegistrationTokenPO
	err := d.db.WithContext(ctx).Where("token = ?", token).First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ListRegistrationTokens 全部注册令牌
func (d *RunnerDao) ListRegistrationTokens(ctx context.Context) ([]*po.RegistrationTokenPO, error) {
	var tokens []*po.RegistrationTokenPO
	err := d.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&tokens).Error
	return tokens, err
}
