package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// VideoDao 视频数据访问对象
type VideoDao struct {
	db *gorm.DB
}

// NewVideoDao 创建视频 DAO
func NewVideoDao(db *gorm.DB) *VideoDao {
	return &VideoDao{db: db}
}

// GetByVideoUUID 根据UUID获取
func (d *VideoDao) GetByVideoUUID(ctx context.Context, videoUUID string) (*po.VideoPO, error) {
	var video po.VideoPO
	err := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// ListFiles 获取视频文件
func (d *VideoDao) ListFiles(ctx context.Context, videoUUID string) ([]*po.VideoFilePO, error) {
	var files []*po.VideoFilePO
	err := d.db.WithContext(ctx).
		Where("video_uuid = ?", videoUUID).
		Order("kind ASC, resolution DESC").
		Find(&files).Error
	return files, err
}

// UpdateStateIf 当前状态在 from 中时更新，返回影响行数
func (d *VideoDao) UpdateStateIf(ctx context.Context, videoUUID string, from []string, to string) (int64, error) {
	result := d.db.WithContext(ctx).
		Model(&po.VideoPO{}).
		Where("video_uuid = ? AND state IN ?", videoUUID, from).
		Updates(map[string]interface{}{
			"state":      to,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// UpsertFile 同一视频同类型同清晰度只保留一条
func (d *VideoDao) UpsertFile(ctx context.Context, file *po.VideoFilePO) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_uuid"}, {Name: "kind"}, {Name: "resolution"}},
			DoUpdates: clause.AssignmentColumns([]string{"fps", "filename", "playlist_filename", "size", "updated_at"}),
		}).
		Create(file).Error
}

// DeleteFiles 删除视频全部文件记录
func (d *VideoDao) DeleteFiles(ctx context.Context, videoUUID string) error {
	return d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).Delete(&po.VideoFilePO{}).Error
}

// UpdateColumns 更新指定列
func (d *VideoDao) UpdateColumns(ctx context.Context, videoUUID string, columns map[string]interface{}) error {
	columns["updated_at"] = time.Now()
	return d.db.WithContext(ctx).
		Model(&po.VideoPO{}).
		Where("video_uuid = ?", videoUUID).
		Updates(columns).Error
}
