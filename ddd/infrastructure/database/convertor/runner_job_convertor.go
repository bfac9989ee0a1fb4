package convertor

import (
	"encoding/json"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// RunnerJobConvertor runner job 转换器
type RunnerJobConvertor struct{}

// NewRunnerJobConvertor 创建 runner job 转换器
func NewRunnerJobConvertor() *RunnerJobConvertor {
	return &RunnerJobConvertor{}
}

// EntityToPO 实体转PO
func (c *RunnerJobConvertor) EntityToPO(job *entity.RunnerJob) *po.RunnerJobPO {
	if job == nil {
		return nil
	}
	s := job.Snapshot()
	return &po.RunnerJobPO{
		JobUUID:         s.JobUUID,
		Type:            s.Type.String(),
		State:           s.State.String(),
		Priority:        s.Priority,
		Payload:         po.JSONRaw(s.Payload),
		PrivatePayload:  po.JSONRaw(s.PrivatePayload),
		FailureCount:    s.FailureCount,
		LastError:       s.LastError,
		Progress:        s.Progress,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		ProcessingToken: s.ProcessingToken,
		DependsOnUUID:   s.DependsOnUUID,
		RunnerUUID:      s.RunnerUUID,
		VideoUUID:       s.VideoUUID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Version:         s.Version,
	}
}

// POToEntity PO转实体
func (c *RunnerJobConvertor) POToEntity(p *po.RunnerJobPO) *entity.RunnerJob {
	if p == nil {
		return nil
	}
	return entity.RestoreRunnerJob(entity.RunnerJobSnapshot{
		JobUUID:         p.JobUUID,
		Type:            vo.JobType(p.Type),
		Priority:        p.Priority,
		State:           vo.JobState(p.State),
		Payload:         json.RawMessage(p.Payload),
		PrivatePayload:  json.RawMessage(p.PrivatePayload),
		FailureCount:    p.FailureCount,
		LastError:       p.LastError,
		Progress:        p.Progress,
		StartedAt:       p.StartedAt,
		FinishedAt:      p.FinishedAt,
		ProcessingToken: p.ProcessingToken,
		DependsOnUUID:   p.DependsOnUUID,
		RunnerUUID:      p.RunnerUUID,
		VideoUUID:       p.VideoUUID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	})
}

// POListToEntityList 批量转换
func (c *RunnerJobConvertor) POListToEntityList(list []*po.RunnerJobPO) []*entity.RunnerJob {
	jobs := make([]*entity.RunnerJob, 0, len(list))
	for _, p := range list {
		jobs = append(jobs, c.POToEntity(p))
	}
	return jobs
}
