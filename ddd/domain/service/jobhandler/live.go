package jobhandler

import (
	"context"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
)

// LiveHandler 直播转码。runner 中途退出无法续传，不支持中止
type LiveHandler struct {
	baseHandler
}

func NewLiveHandler(deps Dependencies) *LiveHandler {
	return &LiveHandler{baseHandler{deps: deps}}
}

func (h *LiveHandler) Type() vo.JobType           { return vo.JobTypeLiveTranscoding }
func (h *LiveHandler) Counter() vo.JobInfoCounter { return vo.CounterNone }
func (h *LiveHandler) SupportsAbort() bool        { return false }

func (h *LiveHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	if params.RTMPURL == "" || len(params.Outputs) == 0 {
		return nil, entity.NewValidationError("", "live job needs an rtmp url and outputs")
	}
	return h.newJob(ctx, h.Type(), h.Counter(), params, func(jobUUID string) (interface{}, error) {
		var p vo.LiveTranscodingPayload
		p.Input.RTMPURL = params.RTMPURL
		p.Output.ToTranscode = params.Outputs
		p.Output.SegmentDuration = h.deps.LiveSegmentDuration
		p.Output.SegmentListSize = h.deps.LiveSegmentListSize
		return p, nil
	}, vo.JobPrivatePayload{})
}

// OnComplete 直播没有产物入库，只清理暂存目录；视频进入 live_ended 由状态机统一结算
func (h *LiveHandler) OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	return h.cleanupStaging(job)
}
