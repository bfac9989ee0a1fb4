package jobhandler

import (
	"context"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
)

// AudioMergeHandler 音频 + 预览图合成为 mp4，作为最高清晰度的 web-video
type AudioMergeHandler struct {
	baseHandler
}

func NewAudioMergeHandler(deps Dependencies) *AudioMergeHandler {
	return &AudioMergeHandler{baseHandler{deps: deps}}
}

func (h *AudioMergeHandler) Type() vo.JobType           { return vo.JobTypeAudioMergeTranscoding }
func (h *AudioMergeHandler) Counter() vo.JobInfoCounter { return vo.CounterPendingTranscode }
func (h *AudioMergeHandler) SupportsAbort() bool        { return true }

func (h *AudioMergeHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	videoUUID := params.Video.VideoUUID()
	return h.newJob(ctx, h.Type(), h.Counter(), params, func(jobUUID string) (interface{}, error) {
		var p vo.AudioMergeTranscodingPayload
		p.Input.AudioFileURL = h.inputVideoURL(jobUUID, videoUUID)
		p.Input.PreviewFileURL = h.previewURL(jobUUID, videoUUID)
		p.Output = vo.TranscodeOutput{Resolution: params.Resolution, FPS: params.FPS}
		return p, nil
	}, vo.JobPrivatePayload{IsMainJob: true, Resolution: params.Resolution, FPS: params.FPS})
}

func (h *AudioMergeHandler) OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	return h.storeWebVideo(ctx, job, result)
}
