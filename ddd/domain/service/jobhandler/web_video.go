package jobhandler

import (
	"context"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
)

// WebVideoHandler 单文件 mp4 转码
type WebVideoHandler struct {
	baseHandler
}

func NewWebVideoHandler(deps Dependencies) *WebVideoHandler {
	return &WebVideoHandler{baseHandler{deps: deps}}
}

func (h *WebVideoHandler) Type() vo.JobType           { return vo.JobTypeWebVideoTranscoding }
func (h *WebVideoHandler) Counter() vo.JobInfoCounter { return vo.CounterPendingTranscode }
func (h *WebVideoHandler) SupportsAbort() bool        { return true }

func (h *WebVideoHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	videoUUID := params.Video.VideoUUID()
	return h.newJob(ctx, h.Type(), h.Counter(), params, func(jobUUID string) (interface{}, error) {
		var p vo.WebVideoTranscodingPayload
		p.Input.VideoFileURL = h.inputVideoURL(jobUUID, videoUUID)
		p.Output = vo.TranscodeOutput{Resolution: params.Resolution, FPS: params.FPS}
		return p, nil
	}, vo.JobPrivatePayload{IsMainJob: params.IsMainJob, Resolution: params.Resolution, FPS: params.FPS})
}

func (h *WebVideoHandler) OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	return h.storeWebVideo(ctx, job, result)
}
