package dto

import (
	"encoding/json"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
)

// RunnerJobDTO 下发给 runner 的 job，不含私有参数
type RunnerJobDTO struct {
	UUID          string          `json:"uuid"`
	Type          string          `json:"type"`
	State         string          `json:"state"`
	Priority      int             `json:"priority"`
	Payload       json.RawMessage `json:"payload"`
	Progress      *int            `json:"progress,omitempty"`
	FailureCount  int             `json:"failures"`
	DependsOnUUID string          `json:"dependsOnUUID,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewRunnerJobDTO 实体转 DTO
func NewRunnerJobDTO(job *entity.RunnerJob) RunnerJobDTO {
	return RunnerJobDTO{
		UUID:          job.JobUUID(),
		Type:          job.Type().String(),
		State:         job.State().String(),
		Priority:      job.Priority(),
		Payload:       job.Payload(),
		Progress:      job.Progress(),
		FailureCount:  job.FailureCount(),
		DependsOnUUID: job.DependsOnUUID(),
		CreatedAt:     job.CreatedAt(),
		UpdatedAt:     job.UpdatedAt(),
	}
}

// AvailableJobsDTO 可领取任务列表
type AvailableJobsDTO struct {
	AvailableJobs []RunnerJobDTO `json:"availableJobs"`
}

// NewAvailableJobsDTO 批量转换
func NewAvailableJobsDTO(jobs []*entity.RunnerJob) *AvailableJobsDTO {
	out := &AvailableJobsDTO{AvailableJobs: make([]RunnerJobDTO, 0, len(jobs))}
	for _, job := range jobs {
		out.AvailableJobs = append(out.AvailableJobs, NewRunnerJobDTO(job))
	}
	return out
}

// AcceptedJobDTO 领取成功后返回，带 jobToken
type AcceptedJobDTO struct {
	Job struct {
		RunnerJobDTO
		JobToken  string     `json:"jobToken"`
		StartedAt *time.Time `json:"startedAt,omitempty"`
	} `json:"job"`
}

// NewAcceptedJobDTO 实体转 DTO
func NewAcceptedJobDTO(job *entity.RunnerJob) *AcceptedJobDTO {
	out := &AcceptedJobDTO{}
	out.Job.RunnerJobDTO = NewRunnerJobDTO(job)
	out.Job.JobToken = job.ProcessingToken()
	out.Job.StartedAt = job.StartedAt()
	return out
}

// AdminJobDTO 管理端视图
type AdminJobDTO struct {
	RunnerJobDTO
	PrivatePayload json.RawMessage `json:"privatePayload"`
	VideoUUID      string          `json:"videoUUID"`
	RunnerUUID     string          `json:"runnerUUID,omitempty"`
	LastError      string          `json:"error,omitempty"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
}

// NewAdminJobDTO 实体转 DTO
func NewAdminJobDTO(job *entity.RunnerJob) *AdminJobDTO {
	return &AdminJobDTO{
		RunnerJobDTO:   NewRunnerJobDTO(job),
		PrivatePayload: job.PrivatePayload(),
		VideoUUID:      job.VideoUUID(),
		RunnerUUID:     job.RunnerUUID(),
		LastError:      job.LastError(),
		StartedAt:      job.StartedAt(),
		FinishedAt:     job.FinishedAt(),
	}
}

// AdminJobListDTO 分页结果
type AdminJobListDTO struct {
	Total int64          `json:"total"`
	Data  []*AdminJobDTO `json:"data"`
}

// NewAdminJobListDTO 批量转换
func NewAdminJobListDTO(jobs []*entity.RunnerJob, total int64) *AdminJobListDTO {
	out := &AdminJobListDTO{Total: total, Data: make([]*AdminJobDTO, 0, len(jobs))}
	for _, job := range jobs {
		out.Data = append(out.Data, NewAdminJobDTO(job))
	}
	return out
}

// CreatedJobsDTO 触发转码后创建的 job
type CreatedJobsDTO struct {
	VideoUUID string         `json:"videoUUID"`
	Jobs      []*AdminJobDTO `json:"jobs"`
}

// NewCreatedJobsDTO 批量转换
func NewCreatedJobsDTO(videoUUID string, jobs []*entity.RunnerJob) *CreatedJobsDTO {
	out := &CreatedJobsDTO{VideoUUID: videoUUID, Jobs: make([]*AdminJobDTO, 0, len(jobs))}
	for _, job := range jobs {
		out.Jobs = append(out.Jobs, NewAdminJobDTO(job))
	}
	return out
}
