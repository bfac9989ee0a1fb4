package service

import (
	"context"
	"fmt"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// PublicationService 视频发布状态机
type PublicationService interface {
	// Advance 推进到下一个状态；已发布时为空操作
	Advance(ctx context.Context, videoUUID string) error
	// OnTranscodingDrained 转码计数归零后调用
	OnTranscodingDrained(ctx context.Context, videoUUID string) error
	// MoveToFailedTranscoding 转码失败终态，可重复调用
	MoveToFailedTranscoding(ctx context.Context, videoUUID string) error
	// MoveToFailedExternalStorage 迁移失败终态，可重复调用
	MoveToFailedExternalStorage(ctx context.Context, videoUUID string) error
	// PrepareForTranscoding 从导入、直播结束、剪辑等入口状态进入转码
	PrepareForTranscoding(ctx context.Context, videoUUID string) error
	// MarkLiveEnded 直播结束
	MarkLiveEnded(ctx context.Context, videoUUID string) error
}

type publicationServiceImpl struct {
	videoRepo            repo.VideoRepository
	jobInfoRepo          repo.JobInfoRepository
	moveQueue            gateway.StorageMoveQueue
	events               gateway.AssetEventPublisher
	objectStorageEnabled bool
}

// NewPublicationService 创建发布状态机，moveQueue 与 events 可为空
func NewPublicationService(videoRepo repo.VideoRepository, jobInfoRepo repo.JobInfoRepository,
	moveQueue gateway.StorageMoveQueue, events gateway.AssetEventPublisher, objectStorageEnabled bool) PublicationService {
	return &publicationServiceImpl{
		videoRepo:            videoRepo,
		jobInfoRepo:          jobInfoRepo,
		moveQueue:            moveQueue,
		events:               events,
		objectStorageEnabled: objectStorageEnabled && moveQueue != nil,
	}
}

var failedTranscodingSources = []vo.VideoState{vo.VideoStateToTranscode, vo.VideoStateToEdit, vo.VideoStateToImport}

func (s *publicationServiceImpl) load(ctx context.Context, videoUUID string) (*entity.Video, error) {
	video, err := s.videoRepo.GetByUUID(ctx, videoUUID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoUUID, err)
	}
	if video == nil {
		return nil, entity.ErrVideoNotFound
	}
	return video, nil
}

func (s *publicationServiceImpl) Advance(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	current := video.State()
	if current == vo.VideoStatePublished {
		return nil
	}
	if current.IsFailed() {
		logger.Warnf("advance skipped video_uuid=%s state=%s", videoUUID, current)
		return nil
	}

	info, err := s.jobInfoRepo.Get(ctx, videoUUID)
	if err != nil {
		return err
	}

	if s.objectStorageEnabled && !current.IsPastExternalStorage() {
		if info.PendingTranscode > 0 {
			logger.Debugf("advance waiting for transcode jobs video_uuid=%s pending=%d", videoUUID, info.PendingTranscode)
			return nil
		}
		changed, err := s.transition(ctx, video, []vo.VideoState{current}, vo.VideoStateToMoveToExternalStorage)
		if err != nil || !changed {
			return err
		}
		if _, err := s.jobInfoRepo.Increase(ctx, videoUUID, vo.CounterPendingMove); err != nil {
			return err
		}
		if err := s.moveQueue.EnqueueMove(ctx, videoUUID); err != nil {
			logger.Errorf("enqueue storage move failed video_uuid=%s error=%v", videoUUID, err)
			if _, decErr := s.jobInfoRepo.Decrease(ctx, videoUUID, vo.CounterPendingMove); decErr != nil {
				logger.Errorf("rollback pending move failed video_uuid=%s error=%v", videoUUID, decErr)
			}
			return s.MoveToFailedExternalStorage(ctx, videoUUID)
		}
		return nil
	}

	if current == vo.VideoStateToMoveToExternalStorage && info.PendingMove > 0 {
		return nil
	}
	_, err = s.transition(ctx, video, []vo.VideoState{current}, vo.VideoStatePublished)
	return err
}

func (s *publicationServiceImpl) OnTranscodingDrained(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	if video.State() != vo.VideoStateToTranscode {
		return nil
	}
	if !video.HasFiles() {
		logger.Warnf("transcoding drained without any file video_uuid=%s", videoUUID)
		return s.MoveToFailedTranscoding(ctx, videoUUID)
	}
	return s.Advance(ctx, videoUUID)
}

func (s *publicationServiceImpl) MoveToFailedTranscoding(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	_, err = s.transition(ctx, video, failedTranscodingSources, vo.VideoStateTranscodingFailed)
	return err
}

func (s *publicationServiceImpl) MoveToFailedExternalStorage(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	_, err = s.transition(ctx, video, []vo.VideoState{vo.VideoStateToMoveToExternalStorage}, vo.VideoStateToMoveToExternalStorageFailed)
	return err
}

func (s *publicationServiceImpl) PrepareForTranscoding(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	if video.State() == vo.VideoStateToTranscode {
		return nil
	}
	if !video.State().IsAlternateEntry() {
		return fmt.Errorf("%w: video %s is %s", entity.ErrInvalidVideoState, videoUUID, video.State())
	}
	changed, err := s.transition(ctx, video, []vo.VideoState{video.State()}, vo.VideoStateToTranscode)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: video %s changed concurrently", entity.ErrInvalidVideoState, videoUUID)
	}
	return nil
}

func (s *publicationServiceImpl) MarkLiveEnded(ctx context.Context, videoUUID string) error {
	video, err := s.load(ctx, videoUUID)
	if err != nil {
		return err
	}
	_, err = s.transition(ctx, video, []vo.VideoState{vo.VideoStateWaitingForLive}, vo.VideoStateLiveEnded)
	return err
}

// transition 校验来源状态后做条件更新，成功时发布事件
func (s *publicationServiceImpl) transition(ctx context.Context, video *entity.Video, from []vo.VideoState, to vo.VideoState) (bool, error) {
	current := video.State()
	if current == to || !containsState(from, current) {
		return false, nil
	}
	changed, err := s.videoRepo.UpdateStateIf(ctx, video.VideoUUID(), []vo.VideoState{current}, to)
	if err != nil {
		return false, fmt.Errorf("update video %s state: %w", video.VideoUUID(), err)
	}
	if !changed {
		return false, nil
	}

	logger.Info("video state changed", map[string]interface{}{
		"video_uuid": video.VideoUUID(),
		"from":       current.String(),
		"to":         to.String(),
	})
	if s.events != nil {
		event := gateway.AssetStateChangedEvent{VideoUUID: video.VideoUUID(), From: current, To: to, OccurredAt: time.Now()}
		if err := s.events.PublishStateChanged(ctx, event); err != nil {
			logger.Warnf("publish video state event failed video_uuid=%s error=%v", video.VideoUUID(), err)
		}
	}
	return true, nil
}

func containsState(states []vo.VideoState, s vo.VideoState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
