package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/infrastructure/database/po"
)

const (
	stateWaitingForParent = "waiting_for_parent_job"
	statePending          = "pending"
	stateProcessing       = "processing"
)

// RunnerJobDao runner job 数据访问对象
type RunnerJobDao struct {
	db *gorm.DB
}

// NewRunnerJobDao 创建 runner job DAO
func NewRunnerJobDao(db *gorm.DB) *RunnerJobDao {
	return &RunnerJobDao{db: db}
}

// Create 创建job
func (d *RunnerJobDao) Create(ctx context.Context, job *po.RunnerJobPO) error {
	return d.db.WithContext(ctx).Create(job).Error
}

// GetByJobUUID 根据jobUUID获取
func (d *RunnerJobDao) GetByJobUUID(ctx context.Context, jobUUID string) (*po.RunnerJobPO, error) {
	var job po.RunnerJobPO
	err := d.db.WithContext(ctx).Where("job_uuid = ?", jobUUID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListPending 获取待领取job
func (d *RunnerJobDao) ListPending(ctx context.Context, limit int, types []string) ([]*po.RunnerJobPO, error) {
	var jobs []*po.RunnerJobPO
	q := d.db.WithContext(ctx).Where("state = ?", statePending)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	err := q.Order("priority ASC, created_at ASC, id ASC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// UpdateIfState 状态与版本号都未变时更新可变列，版本号加一，返回影响行数。
// job.Version 为加载时读到的版本号
func (d *RunnerJobDao) UpdateIfState(ctx context.Context, job *po.RunnerJobPO, expected string) (int64, error) {
	result := d.db.WithContext(ctx).
		Model(&po.RunnerJobPO{}).
		Where("job_uuid = ? AND state = ? AND version = ?", job.JobUUID, expected, job.Version).
		Updates(map[string]interface{}{
			"state":            job.State,
			"failure_count":    job.FailureCount,
			"last_error":       job.LastError,
			"progress":         job.Progress,
			"started_at":       job.StartedAt,
			"finished_at":      job.FinishedAt,
			"processing_token": job.ProcessingToken,
			"runner_uuid":      job.RunnerUUID,
			"updated_at":       job.UpdatedAt,
			"version":          job.Version + 1,
		})
	return result.RowsAffected, result.Error
}

// ReleaseChildren 等待父任务的子任务批量置为 pending
func (d *RunnerJobDao) ReleaseChildren(ctx context.Context, parentUUID string) (int64, error) {
	result := d.db.WithContext(ctx).
		Model(&po.RunnerJobPO{}).
		Where("depends_on_uuid = ? AND state = ?", parentUUID, stateWaitingForParent).
		Updates(map[string]interface{}{
			"state":      statePending,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

// ListByParent 获取直接子任务
func (d *RunnerJobDao) ListByParent(ctx context.Context, parentUUID string) ([]*po.RunnerJobPO, error) {
	var jobs []*po.RunnerJobPO
	err := d.db.WithContext(ctx).
		Where("depends_on_uuid = ?", parentUUID).
		Order("priority ASC, id ASC").
		Find(&jobs).Error
	return jobs, err
}

// ListProcessingByRunner 获取 runner 正在处理的job
func (d *RunnerJobDao) ListProcessingByRunner(ctx context.Context, runnerUUID string) ([]*po.RunnerJobPO, error) {
	var jobs []*po.RunnerJobPO
	err := d.db.WithContext(ctx).
		Where("state = ? AND runner_uuid = ?", stateProcessing, runnerUUID).
		Find(&jobs).Error
	return jobs, err
}

// ListStaleProcessing 领取时间与最近更新时间都早于 before 的处理中job
func (d *RunnerJobDao) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*po.RunnerJobPO, error) {
	var jobs []*po.RunnerJobPO
	err := d.db.WithContext(ctx).
		Where("state = ? AND started_at < ? AND updated_at < ?", stateProcessing, before, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// List 分页查询
func (d *RunnerJobDao) List(ctx context.Context, states []string, videoUUID string, limit, offset int) ([]*po.RunnerJobPO, int64, error) {
	var (
		jobs  []*po.RunnerJobPO
		total int64
	)
	q := d.db.WithContext(ctx).Model(&po.RunnerJobPO{})
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	if videoUUID != "" {
		q = q.Where("video_uuid = ?", videoUUID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&jobs).Error
	return jobs, total, err
}
