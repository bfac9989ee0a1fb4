package app

import (
	"context"
	"errors"
	"sync"

	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/ddd/application/dto"
	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/errno"
	"transcode-orchestrator/pkg/logger"
)

var (
	singleVideoApp VideoApp
	onceVideoApp   sync.Once
)

// ErrStorageMoveDisabled 未启用外部存储
var ErrStorageMoveDisabled = errors.New("object storage is disabled")

// VideoApp 视频级入口：转码、剪辑、直播与外部存储迁移
type VideoApp interface {
	Transcode(ctx context.Context, req *cqe.TranscodeVideoReq) (*dto.CreatedJobsDTO, error)
	StudioEdit(ctx context.Context, req *cqe.StudioEditReq) (*dto.CreatedJobsDTO, error)
	StartLive(ctx context.Context, req *cqe.StartLiveReq) (*dto.CreatedJobsDTO, error)
	// MoveToExternalStorage 由迁移队列消费者调用
	MoveToExternalStorage(ctx context.Context, videoUUID string) error
}

type videoAppImpl struct {
	engine *Engine
}

func DefaultVideoApp() VideoApp {
	assert.NotCircular()
	onceVideoApp.Do(func() {
		singleVideoApp = NewVideoApp(DefaultEngine())
	})
	assert.NotNil(singleVideoApp)
	return singleVideoApp
}

func NewVideoApp(engine *Engine) VideoApp {
	return &videoAppImpl{engine: engine}
}

func (a *videoAppImpl) Transcode(ctx context.Context, req *cqe.TranscodeVideoReq) (*dto.CreatedJobsDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	jobs, err := a.engine.Graph.BuildForVideo(ctx, req.VideoUUID, service.BuildOptions{Priority: req.Priority})
	if err != nil {
		if len(jobs) > 0 {
			// 部分子任务创建失败，主任务已可领取
			logger.Warnf("transcoding plan partially created video_uuid=%s created=%d error=%v", req.VideoUUID, len(jobs), err)
		}
		return nil, toBizError(err)
	}
	return dto.NewCreatedJobsDTO(req.VideoUUID, jobs), nil
}

func (a *videoAppImpl) StudioEdit(ctx context.Context, req *cqe.StudioEditReq) (*dto.CreatedJobsDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := a.engine.Graph.PlanStudioEdit(ctx, req.VideoUUID, req.Tasks)
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewCreatedJobsDTO(req.VideoUUID, []*entity.RunnerJob{job}), nil
}

func (a *videoAppImpl) StartLive(ctx context.Context, req *cqe.StartLiveReq) (*dto.CreatedJobsDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := a.engine.Graph.PlanLive(ctx, req.VideoUUID, req.RTMPURL, service.LiveInput{Resolution: req.Resolution, FPS: req.FPS})
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewCreatedJobsDTO(req.VideoUUID, []*entity.RunnerJob{job}), nil
}

func (a *videoAppImpl) MoveToExternalStorage(ctx context.Context, videoUUID string) error {
	if videoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if a.engine.StorageMove == nil {
		return ErrStorageMoveDisabled
	}
	return a.engine.StorageMove.MoveVideo(ctx, videoUUID)
}
