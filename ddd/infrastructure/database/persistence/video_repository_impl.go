package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/convertor"
	"transcode-orchestrator/ddd/infrastructure/database/dao"
)

// videoRepositoryImpl 视频仓储实现
type videoRepositoryImpl struct {
	videoDao  *dao.VideoDao
	convertor *convertor.VideoConvertor
}

// NewVideoRepository 创建视频仓储实现
func NewVideoRepository(db *gorm.DB) repo.VideoRepository {
	return &videoRepositoryImpl{
		videoDao:  dao.NewVideoDao(db),
		convertor: convertor.NewVideoConvertor(),
	}
}

func (r *videoRepositoryImpl) GetByUUID(ctx context.Context, videoUUID string) (*entity.Video, error) {
	v, err := r.videoDao.GetByVideoUUID(ctx, videoUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	files, err := r.videoDao.ListFiles(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	return r.convertor.POToEntity(v, files), nil
}

func (r *videoRepositoryImpl) UpdateStateIf(ctx context.Context, videoUUID string, from []vo.VideoState, to vo.VideoState) (bool, error) {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, s.String())
	}
	affected, err := r.videoDao.UpdateStateIf(ctx, videoUUID, states, to.String())
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *videoRepositoryImpl) UpsertFile(ctx context.Context, videoUUID string, file vo.VideoFile) error {
	return r.videoDao.UpsertFile(ctx, r.convertor.FileVOToPO(videoUUID, file))
}

func (r *videoRepositoryImpl) DeleteFiles(ctx context.Context, videoUUID string) error {
	return r.videoDao.DeleteFiles(ctx, videoUUID)
}

func (r *videoRepositoryImpl) UpdateDuration(ctx context.Context, videoUUID string, duration float64) error {
	return r.videoDao.UpdateColumns(ctx, videoUUID, map[string]interface{}{"duration": duration})
}

func (r *videoRepositoryImpl) ReplaceInput(ctx context.Context, videoUUID, filename string) error {
	return r.videoDao.UpdateColumns(ctx, videoUUID, map[string]interface{}{"input_filename": filename})
}
