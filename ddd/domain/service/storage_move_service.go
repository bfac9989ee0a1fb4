package service

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// StorageMoveService 把视频文件迁移到外部对象存储
type StorageMoveService interface {
	// MoveVideo 上传视频目录下全部文件，完成后推进发布状态
	MoveVideo(ctx context.Context, videoUUID string) error
}

// StorageMoveOptions 迁移参数
type StorageMoveOptions struct {
	KeyPrefix   string
	Concurrency int
}

type storageMoveServiceImpl struct {
	videoRepo   repo.VideoRepository
	jobInfoRepo repo.JobInfoRepository
	store       gateway.MediaFileStore
	external    gateway.ExternalStorage
	publication PublicationService
	opts        StorageMoveOptions
}

func NewStorageMoveService(videoRepo repo.VideoRepository, jobInfoRepo repo.JobInfoRepository, store gateway.MediaFileStore,
	external gateway.ExternalStorage, publication PublicationService, opts StorageMoveOptions) StorageMoveService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "videos"
	}
	return &storageMoveServiceImpl{
		videoRepo:   videoRepo,
		jobInfoRepo: jobInfoRepo,
		store:       store,
		external:    external,
		publication: publication,
		opts:        opts,
	}
}

func (s *storageMoveServiceImpl) MoveVideo(ctx context.Context, videoUUID string) error {
	video, err := s.videoRepo.GetByUUID(ctx, videoUUID)
	if err != nil {
		return err
	}
	if video == nil {
		return entity.ErrVideoNotFound
	}
	if video.State() != vo.VideoStateToMoveToExternalStorage {
		logger.Infof("storage move skipped video_uuid=%s state=%s", videoUUID, video.State())
		return nil
	}

	uploadErr := s.upload(ctx, videoUUID)

	if _, err := s.jobInfoRepo.Decrease(ctx, videoUUID, vo.CounterPendingMove); err != nil {
		logger.Errorf("decrease pending move failed video_uuid=%s error=%v", videoUUID, err)
	}

	if uploadErr != nil {
		logger.Error("storage move failed", map[string]interface{}{
			"video_uuid": videoUUID,
			"error":      uploadErr.Error(),
		})
		if err := s.publication.MoveToFailedExternalStorage(ctx, videoUUID); err != nil {
			return err
		}
		return uploadErr
	}
	return s.publication.Advance(ctx, videoUUID)
}

func (s *storageMoveServiceImpl) upload(ctx context.Context, videoUUID string) error {
	dir := s.store.VideoDir(videoUUID)
	files, err := s.store.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("list video files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("video %s has no local files", videoUUID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			return s.uploadOne(gctx, videoUUID, dir, file)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infof("storage move finished video_uuid=%s files=%d", videoUUID, len(files))
	return nil
}

func (s *storageMoveServiceImpl) uploadOne(ctx context.Context, videoUUID, dir, file string) error {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return err
	}
	key := path.Join(s.opts.KeyPrefix, videoUUID, filepath.ToSlash(rel))

	r, info, err := s.store.Open(file)
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := s.external.Upload(ctx, key, r, info.Size(), contentTypeOf(file)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func contentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".mp4":
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
