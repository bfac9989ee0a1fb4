package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/convertor"
	"transcode-orchestrator/ddd/infrastructure/database/dao"
)

// jobInfoRepositoryImpl 任务计数仓储实现
type jobInfoRepositoryImpl struct {
	jobInfoDao *dao.JobInfoDao
	convertor  *convertor.VideoConvertor
}

// NewJobInfoRepository 创建任务计数仓储实现
func NewJobInfoRepository(db *gorm.DB) repo.JobInfoRepository {
	return &jobInfoRepositoryImpl{
		jobInfoDao: dao.NewJobInfoDao(db),
		convertor:  convertor.NewVideoConvertor(),
	}
}

func (r *jobInfoRepositoryImpl) Get(ctx context.Context, videoUUID string) (*entity.JobInfo, error) {
	p, err := r.jobInfoDao.GetByVideoUUID(ctx, videoUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.convertor.JobInfoPOToEntity(videoUUID, nil), nil
		}
		return nil, err
	}
	return r.convertor.JobInfoPOToEntity(videoUUID, p), nil
}

func (r *jobInfoRepositoryImpl) Increase(ctx context.Context, videoUUID string, counter vo.JobInfoCounter) (int, error) {
	if !counter.IsValid() {
		return 0, fmt.Errorf("invalid counter %q", counter)
	}
	if err := r.jobInfoDao.EnsureRow(ctx, videoUUID); err != nil {
		return 0, err
	}
	return r.jobInfoDao.Increment(ctx, videoUUID, counter.String())
}

func (r *jobInfoRepositoryImpl) Decrease(ctx context.Context, videoUUID string, counter vo.JobInfoCounter) (int, error) {
	if !counter.IsValid() {
		return 0, fmt.Errorf("invalid counter %q", counter)
	}
	remaining, ok, err := r.jobInfoDao.Decrement(ctx, videoUUID, counter.String())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, entity.ErrCounterUnderflow
	}
	return remaining, nil
}
