package cqe

import (
	"io"
	"strings"

	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/errno"
)

// RegisterRunnerReq runner 注册请求
type RegisterRunnerReq struct {
	RegistrationToken string `json:"registrationToken" form:"registrationToken"`
	Name              string `json:"name" form:"name"`
	Description       string `json:"description" form:"description"`
	IP                string `json:"ip" form:"ip"`
}

func (req *RegisterRunnerReq) Validate() error {
	if strings.TrimSpace(req.RegistrationToken) == "" {
		return errno.ErrRegistrationTokenRequired
	}
	if strings.TrimSpace(req.Name) == "" {
		return errno.ErrRunnerNameRequired
	}
	return nil
}

// RunnerAuthReq 只携带 runner token 的请求
type RunnerAuthReq struct {
	RunnerToken string `json:"runnerToken" form:"runnerToken"`
}

func (req *RunnerAuthReq) Validate() error {
	if strings.TrimSpace(req.RunnerToken) == "" {
		return errno.ErrRunnerTokenRequired
	}
	return nil
}

// RequestJobsReq 拉取可领取任务
type RequestJobsReq struct {
	RunnerAuthReq
	JobTypes []string `json:"jobTypes"`
}

func (req *RequestJobsReq) Validate() error {
	if err := req.RunnerAuthReq.Validate(); err != nil {
		return err
	}
	for _, t := range req.JobTypes {
		if !vo.JobType(t).IsValid() {
			return errno.NewBizError(errno.ErrInvalidParam, errInvalidJobType(t))
		}
	}
	return nil
}

// Types 转为领域类型
func (req *RequestJobsReq) Types() []vo.JobType {
	types := make([]vo.JobType, 0, len(req.JobTypes))
	for _, t := range req.JobTypes {
		types = append(types, vo.JobType(t))
	}
	return types
}

// JobAuthReq runner token + job token
type JobAuthReq struct {
	RunnerAuthReq
	JobToken string `json:"jobToken" form:"jobToken"`
}

func (req *JobAuthReq) Validate() error {
	if err := req.RunnerAuthReq.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(req.JobToken) == "" {
		return errno.ErrJobTokenRequired
	}
	return nil
}

// UpdateJobReq 进度上报
type UpdateJobReq struct {
	JobAuthReq
	Progress *int `json:"progress"`
}

func (req *UpdateJobReq) Validate() error {
	if err := req.JobAuthReq.Validate(); err != nil {
		return err
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		return errno.ErrInvalidProgress
	}
	return nil
}

// SuccessJobReq 成功上报，multipart 上传时 payload 中的文件名由上传文件补齐
type SuccessJobReq struct {
	JobAuthReq
	Payload vo.JobResultPayload `json:"payload"`
}

// ErrorJobReq 失败上报
type ErrorJobReq struct {
	JobAuthReq
	Message string `json:"message"`
}

func (req *ErrorJobReq) Validate() error {
	if err := req.JobAuthReq.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return errno.ErrErrorMessageNeeded
	}
	return nil
}

// AbortJobReq 放弃任务
type AbortJobReq struct {
	JobAuthReq
	Reason string `json:"reason"`
}

// UploadedFile runner 上传的结果文件
type UploadedFile struct {
	// Field multipart 字段名，例如 payload[videoFile]
	Field    string
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// DownloadFileReq runner 下载输入文件
type DownloadFileReq struct {
	JobAuthReq
	JobUUID   string `json:"-"`
	VideoUUID string `json:"-"`
	Preview   bool   `json:"-"`
}

func (req *DownloadFileReq) Validate() error {
	if req.JobUUID == "" {
		return errno.ErrJobUUIDRequired
	}
	if req.VideoUUID == "" {
		return errno.ErrVideoUUIDRequired
	}
	return req.JobAuthReq.Validate()
}
