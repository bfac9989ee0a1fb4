package cqe

import (
	"fmt"
	"strings"

	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/errno"
)

const maxPageSize = 100

func errInvalidJobType(t string) error {
	return fmt.Errorf("unknown job type %q", t)
}

// ListJobsQuery 管理端任务查询
type ListJobsQuery struct {
	State     string `form:"state"`
	VideoUUID string `form:"video_uuid"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

func (q *ListJobsQuery) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return errno.ErrInvalidParam
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	for _, s := range q.states() {
		if !s.IsValid() {
			return errno.NewBizError(errno.ErrInvalidJobState, fmt.Errorf("unknown state %q", s))
		}
	}
	return nil
}

func (q *ListJobsQuery) states() []vo.JobState {
	var states []vo.JobState
	for _, s := range strings.Split(q.State, ",") {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, vo.JobState(s))
		}
	}
	return states
}

// Filter 转为仓储查询条件
func (q *ListJobsQuery) Filter() repo.RunnerJobFilter {
	return repo.RunnerJobFilter{
		States:    q.states(),
		VideoUUID: q.VideoUUID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
}

// PageQuery 通用分页
type PageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (q *PageQuery) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return errno.ErrInvalidParam
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return nil
}

// TranscodeVideoReq 触发转码
type TranscodeVideoReq struct {
	VideoUUID string `json:"-"`
	Priority  int    `json:"priority"`
}

func (req *TranscodeVideoReq) Validate() error {
	if req.VideoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if req.Priority < 0 {
		return errno.ErrInvalidParam
	}
	return nil
}

// StudioEditReq 触发剪辑
type StudioEditReq struct {
	VideoUUID string          `json:"-"`
	Tasks     []vo.StudioTask `json:"tasks"`
}

func (req *StudioEditReq) Validate() error {
	if req.VideoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if len(req.Tasks) == 0 {
		return errno.NewBizError(errno.ErrMissingParam, fmt.Errorf("tasks"))
	}
	for _, t := range req.Tasks {
		if strings.TrimSpace(t.Name) == "" {
			return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("studio task name is required"))
		}
	}
	return nil
}

// StartLiveReq 开始直播转码
type StartLiveReq struct {
	VideoUUID  string  `json:"-"`
	RTMPURL    string  `json:"rtmpUrl"`
	Resolution int     `json:"resolution"`
	FPS        float64 `json:"fps"`
}

func (req *StartLiveReq) Validate() error {
	if req.VideoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if strings.TrimSpace(req.RTMPURL) == "" {
		return errno.NewBizError(errno.ErrMissingParam, fmt.Errorf("rtmpUrl"))
	}
	if req.Resolution <= 0 {
		return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("resolution must be positive"))
	}
	return nil
}

// AssetIngestedMessage 目录服务发出的"视频已就绪，可以转码"消息
type AssetIngestedMessage struct {
	VideoUUID string `json:"videoUUID"`
	Priority  int    `json:"priority,omitempty"`
}

func (m *AssetIngestedMessage) Validate() error {
	if m.VideoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	return nil
}
