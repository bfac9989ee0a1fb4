package jobhandler

import (
	"context"
	"fmt"
	"path/filepath"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// HLSHandler fragmented mp4 + 子播放列表
type HLSHandler struct {
	baseHandler
}

func NewHLSHandler(deps Dependencies) *HLSHandler {
	return &HLSHandler{baseHandler{deps: deps}}
}

func (h *HLSHandler) Type() vo.JobType           { return vo.JobTypeHLSTranscoding }
func (h *HLSHandler) Counter() vo.JobInfoCounter { return vo.CounterPendingTranscode }
func (h *HLSHandler) SupportsAbort() bool        { return true }

func (h *HLSHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	videoUUID := params.Video.VideoUUID()
	return h.newJob(ctx, h.Type(), h.Counter(), params, func(jobUUID string) (interface{}, error) {
		var p vo.HLSTranscodingPayload
		p.Input.VideoFileURL = h.inputVideoURL(jobUUID, videoUUID)
		p.Output.TranscodeOutput = vo.TranscodeOutput{Resolution: params.Resolution, FPS: params.FPS}
		p.Output.AudioOnly = params.AudioOnly
		return p, nil
	}, vo.JobPrivatePayload{
		IsMainJob:  params.IsMainJob,
		Resolution: params.Resolution,
		FPS:        params.FPS,
		AudioOnly:  params.AudioOnly,
	})
}

func (h *HLSHandler) OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	private, err := job.DecodePrivatePayload()
	if err != nil {
		return err
	}
	store := h.deps.Store
	videoUUID := private.VideoUUID

	stagedVideo, err := h.stagedPath(job, result.VideoFile)
	if err != nil {
		return err
	}
	stagedPlaylist, err := h.stagedPath(job, result.ResolutionPlaylistFile)
	if err != nil {
		return err
	}

	finalVideo := store.HLSFragmentedPath(videoUUID, private.Resolution)
	finalPlaylist := store.HLSPlaylistPath(videoUUID, private.Resolution)

	if err := store.Move(stagedVideo, finalVideo); err != nil {
		return fmt.Errorf("move fragmented file: %w", err)
	}

	// 暂存播放列表已不存在说明上次已经写过最终播放列表
	if store.Exists(stagedPlaylist) {
		content, err := store.ReadFile(stagedPlaylist)
		if err != nil {
			return err
		}
		content = rewritePlaylist(content, filepath.Base(stagedVideo), filepath.Base(finalVideo))
		if err := store.WriteFile(finalPlaylist, content); err != nil {
			return fmt.Errorf("write resolution playlist: %w", err)
		}
	} else if !store.Exists(finalPlaylist) {
		return fmt.Errorf("resolution playlist %s not found", filepath.Base(stagedPlaylist))
	}

	size, err := store.Size(finalVideo)
	if err != nil {
		return err
	}
	file := vo.VideoFile{
		Kind:             vo.VideoFileKindHLS,
		Resolution:       private.Resolution,
		FPS:              private.FPS,
		Filename:         filepath.Base(finalVideo),
		PlaylistFilename: filepath.Base(finalPlaylist),
		Size:             size,
	}
	if err := h.deps.Videos.UpsertFile(ctx, videoUUID, file); err != nil {
		return err
	}

	if err := h.regenerateMasterPlaylist(ctx, videoUUID); err != nil {
		return err
	}
	if private.IsMainJob {
		if err := h.writeBackDuration(ctx, videoUUID, finalVideo); err != nil {
			return err
		}
	}
	return h.cleanupStaging(job)
}

func (h *HLSHandler) regenerateMasterPlaylist(ctx context.Context, videoUUID string) error {
	video, err := h.deps.Videos.GetByUUID(ctx, videoUUID)
	if err != nil {
		return err
	}
	if video == nil {
		return entity.ErrVideoNotFound
	}
	files := video.FilesOfKind(vo.VideoFileKindHLS)
	if err := h.deps.Store.WriteFile(h.deps.Store.MasterPlaylistPath(videoUUID), buildMasterPlaylist(files)); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}
	logger.Debugf("master playlist regenerated video_uuid=%s renditions=%d", videoUUID, len(files))
	return nil
}
