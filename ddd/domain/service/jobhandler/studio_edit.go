package jobhandler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// StudioEditHandler 剪辑任务：替换源文件后重新生成转码阶梯
type StudioEditHandler struct {
	baseHandler

	mu      sync.RWMutex
	planner service.TranscodePlanner
}

func NewStudioEditHandler(deps Dependencies) *StudioEditHandler {
	return &StudioEditHandler{baseHandler: baseHandler{deps: deps}}
}

// SetPlanner 注入任务图构建器（构建器本身依赖 handler 注册表）
func (h *StudioEditHandler) SetPlanner(p service.TranscodePlanner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.planner = p
}

func (h *StudioEditHandler) Type() vo.JobType           { return vo.JobTypeStudioEditTranscoding }
func (h *StudioEditHandler) Counter() vo.JobInfoCounter { return vo.CounterPendingTranscode }
func (h *StudioEditHandler) SupportsAbort() bool        { return true }

func (h *StudioEditHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	videoUUID := params.Video.VideoUUID()
	return h.newJob(ctx, h.Type(), h.Counter(), params, func(jobUUID string) (interface{}, error) {
		var p vo.StudioEditTranscodingPayload
		p.Input.VideoFileURL = h.inputVideoURL(jobUUID, videoUUID)
		p.Tasks = params.StudioTasks
		return p, nil
	}, vo.JobPrivatePayload{IsMainJob: true})
}

// editedFilename 剪辑结果的源文件名
func editedFilename(videoUUID, jobUUID string) string {
	return fmt.Sprintf("%s-edited-%s.mp4", videoUUID, jobUUID)
}

func (h *StudioEditHandler) OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	h.mu.RLock()
	planner := h.planner
	h.mu.RUnlock()
	if planner == nil {
		return fmt.Errorf("studio edit planner is not configured")
	}

	videoUUID := job.VideoUUID()
	src, err := h.stagedPath(job, result.VideoFile)
	if err != nil {
		return err
	}
	filename := editedFilename(videoUUID, job.JobUUID())
	if err := h.deps.Store.Move(src, h.deps.Store.InputPath(videoUUID, filename)); err != nil {
		return fmt.Errorf("move edited file: %w", err)
	}
	if err := h.deps.Videos.ReplaceInput(ctx, videoUUID, filepath.Base(filename)); err != nil {
		return err
	}
	if err := h.deps.Videos.DeleteFiles(ctx, videoUUID); err != nil {
		return err
	}
	if err := h.deps.Publication.PrepareForTranscoding(ctx, videoUUID); err != nil {
		return err
	}

	jobs, err := planner.BuildForVideo(ctx, videoUUID, service.BuildOptions{})
	if err != nil {
		return fmt.Errorf("plan transcoding after edit: %w", err)
	}
	logger.Infof("studio edit applied video_uuid=%s job_uuid=%s new_jobs=%d", videoUUID, job.JobUUID(), len(jobs))
	return h.cleanupStaging(job)
}
