package dao

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// JobInfoDao 视频任务计数数据访问对象
type JobInfoDao struct {
	db *gorm.DB
}

// NewJobInfoDao 创建计数 DAO
func NewJobInfoDao(db *gorm.DB) *JobInfoDao {
	return &JobInfoDao{db: db}
}

var counterColumns = map[string]bool{
	"pending_transcode": true,
	"pending_move":      true,
}

// GetByVideoUUID 获取计数
func (d *JobInfoDao) GetByVideoUUID(ctx context.Context, videoUUID string) (*po.JobInfoPO, error) {
	var info po.JobInfoPO
	err := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// EnsureRow 不存在时创建全零记录
func (d *JobInfoDao) EnsureRow(ctx context.Context, videoUUID string) error {
	now := time.Now()
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "video_uuid"}}, DoNothing: true}).
		Create(&po.JobInfoPO{VideoUUID: videoUUID, CreatedAt: now, UpdatedAt: now}).Error
}

// Increment 计数加一，返回同一事务内读出的新值
func (d *JobInfoDao) Increment(ctx context.Context, videoUUID, column string) (int, error) {
	if !counterColumns[column] {
		return 0, fmt.Errorf("unknown counter column %q", column)
	}
	var info po.JobInfoPO
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&po.JobInfoPO{}).
			Where("video_uuid = ?", videoUUID).
			Updates(map[string]interface{}{
				column:       gorm.Expr(column + " + 1"),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("video_uuid = ?", videoUUID).
			First(&info).Error
	})
	if err != nil {
		return 0, err
	}
	return info.Counter(column), nil
}

// Decrement 计数大于零时减一，并在同一事务内读出减后的值。
// ok 为 false 表示计数已为零或记录不存在
func (d *JobInfoDao) Decrement(ctx context.Context, videoUUID, column string) (remaining int, ok bool, err error) {
	if !counterColumns[column] {
		return 0, false, fmt.Errorf("unknown counter column %q", column)
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&po.JobInfoPO{}).
			Where("video_uuid = ? AND "+column+" > 0", videoUUID).
			Updates(map[string]interface{}{
				column:       gorm.Expr(column + " - 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		ok = true
		// 行锁由上面的 UPDATE 持有到提交，其他减一只能排在后面
		var info po.JobInfoPO
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("video_uuid = ?", videoUUID).
			First(&info).Error; err != nil {
			return err
		}
		remaining = info.Counter(column)
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return remaining, ok, nil
}
