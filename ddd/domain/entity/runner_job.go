package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"transcode-orchestrator/ddd/domain/vo"
)

// RunnerJob 可被远程 runner 领取执行的一个工作单元
type RunnerJob struct {
	jobUUID         string
	jobType         vo.JobType
	priority        int
	state           vo.JobState
	payload         json.RawMessage
	privatePayload  json.RawMessage
	failureCount    int
	lastError       string
	progress        *int
	startedAt       *time.Time
	finishedAt      *time.Time
	processingToken string
	dependsOnUUID   string
	runnerUUID      string
	videoUUID       string
	createdAt       time.Time
	updatedAt       time.Time
	// version 每次条件写入成功加一
	version int
}

// RunnerJobSnapshot 持久化层使用的完整字段集合
type RunnerJobSnapshot struct {
	JobUUID         string
	Type            vo.JobType
	Priority        int
	State           vo.JobState
	Payload         json.RawMessage
	PrivatePayload  json.RawMessage
	FailureCount    int
	LastError       string
	Progress        *int
	StartedAt       *time.Time
	FinishedAt      *time.Time
	ProcessingToken string
	DependsOnUUID   string
	RunnerUUID      string
	VideoUUID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// NewRunnerJob 创建新 job；有父任务时进入 waiting_for_parent_job，否则 pending
func NewRunnerJob(jobType vo.JobType, videoUUID string, priority int, payload, privatePayload json.RawMessage, dependsOnUUID string) (*RunnerJob, error) {
	if !jobType.IsValid() {
		return nil, NewDomainError(fmt.Sprintf("unknown job type %q", jobType))
	}
	now := time.Now()
	state := vo.JobStatePending
	if dependsOnUUID != "" {
		state = vo.JobStateWaitingForParent
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if len(privatePayload) == 0 {
		privatePayload = json.RawMessage("{}")
	}
	return &RunnerJob{
		jobUUID:        uuid.NewString(),
		jobType:        jobType,
		priority:       priority,
		state:          state,
		payload:        payload,
		privatePayload: privatePayload,
		dependsOnUUID:  dependsOnUUID,
		videoUUID:      videoUUID,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// RestoreRunnerJob 从持久化快照还原
func RestoreRunnerJob(s RunnerJobSnapshot) *RunnerJob {
	return &RunnerJob{
		jobUUID:         s.JobUUID,
		jobType:         s.Type,
		priority:        s.Priority,
		state:           s.State,
		payload:         s.Payload,
		privatePayload:  s.PrivatePayload,
		failureCount:    s.FailureCount,
		lastError:       s.LastError,
		progress:        s.Progress,
		startedAt:       s.StartedAt,
		finishedAt:      s.FinishedAt,
		processingToken: s.ProcessingToken,
		dependsOnUUID:   s.DependsOnUUID,
		runnerUUID:      s.RunnerUUID,
		videoUUID:       s.VideoUUID,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		version:         s.Version,
	}
}

// Snapshot 导出完整字段
func (j *RunnerJob) Snapshot() RunnerJobSnapshot {
	return RunnerJobSnapshot{
		JobUUID:         j.jobUUID,
		Type:            j.jobType,
		Priority:        j.priority,
		State:           j.state,
		Payload:         j.payload,
		PrivatePayload:  j.privatePayload,
		FailureCount:    j.failureCount,
		LastError:       j.lastError,
		Progress:        j.progress,
		StartedAt:       j.startedAt,
		FinishedAt:      j.finishedAt,
		ProcessingToken: j.processingToken,
		DependsOnUUID:   j.dependsOnUUID,
		RunnerUUID:      j.runnerUUID,
		VideoUUID:       j.videoUUID,
		CreatedAt:       j.createdAt,
		UpdatedAt:       j.updatedAt,
		Version:         j.version,
	}
}

// Getters
func (j *RunnerJob) JobUUID() string                 { return j.jobUUID }
func (j *RunnerJob) Type() vo.JobType                { return j.jobType }
func (j *RunnerJob) Priority() int                   { return j.priority }
func (j *RunnerJob) State() vo.JobState              { return j.state }
func (j *RunnerJob) Payload() json.RawMessage        { return j.payload }
func (j *RunnerJob) PrivatePayload() json.RawMessage { return j.privatePayload }
func (j *RunnerJob) FailureCount() int               { return j.failureCount }
func (j *RunnerJob) LastError() string               { return j.lastError }
func (j *RunnerJob) Progress() *int                  { return j.progress }
func (j *RunnerJob) StartedAt() *time.Time           { return j.startedAt }
func (j *RunnerJob) FinishedAt() *time.Time          { return j.finishedAt }
func (j *RunnerJob) ProcessingToken() string         { return j.processingToken }
func (j *RunnerJob) DependsOnUUID() string           { return j.dependsOnUUID }
func (j *RunnerJob) RunnerUUID() string              { return j.runnerUUID }
func (j *RunnerJob) VideoUUID() string               { return j.videoUUID }
func (j *RunnerJob) CreatedAt() time.Time            { return j.createdAt }
func (j *RunnerJob) UpdatedAt() time.Time            { return j.updatedAt }
func (j *RunnerJob) Version() int                    { return j.version }

// MarkStored 条件写入成功后由仓储调用，版本号前进一位
func (j *RunnerJob) MarkStored() { j.version++ }

// LastActivityAt 领取时间与最近一次上报中较晚的一个
func (j *RunnerJob) LastActivityAt() time.Time {
	if j.startedAt != nil && j.startedAt.After(j.updatedAt) {
		return *j.startedAt
	}
	return j.updatedAt
}

// AttachPayload 创建后、落库前写入 payload（payload 中的地址需要 jobUUID）
func (j *RunnerJob) AttachPayload(payload, privatePayload json.RawMessage) {
	if len(payload) > 0 {
		j.payload = payload
	}
	if len(privatePayload) > 0 {
		j.privatePayload = privatePayload
	}
}

// DecodePrivatePayload 解析私有参数
func (j *RunnerJob) DecodePrivatePayload() (vo.JobPrivatePayload, error) {
	var p vo.JobPrivatePayload
	err := vo.DecodePayload(j.privatePayload, &p)
	return p, err
}

func (j *RunnerJob) transition(target vo.JobState, now time.Time) error {
	if !j.state.CanTransitionTo(target) {
		return NewConflictError(j.jobUUID, fmt.Sprintf("cannot move from %s to %s", j.state, target))
	}
	j.state = target
	j.updatedAt = now
	return nil
}

// ReleaseFromParent 父任务完成后进入可领取状态
func (j *RunnerJob) ReleaseFromParent(now time.Time) error {
	if j.state != vo.JobStateWaitingForParent {
		return NewConflictError(j.jobUUID, "job is not waiting for its parent")
	}
	return j.transition(vo.JobStatePending, now)
}

// Accept runner 领取 job，返回本次处理令牌
func (j *RunnerJob) Accept(runnerUUID string, now time.Time) (string, error) {
	if j.state != vo.JobStatePending {
		return "", NewConflictError(j.jobUUID, "job is no longer available")
	}
	if err := j.transition(vo.JobStateProcessing, now); err != nil {
		return "", err
	}
	j.processingToken = uuid.NewString()
	j.runnerUUID = runnerUUID
	startedAt := now
	j.startedAt = &startedAt
	j.finishedAt = nil
	j.progress = nil
	return j.processingToken, nil
}

// CheckOwnership 校验 job 处于处理中且属于该 runner
func (j *RunnerJob) CheckOwnership(runnerUUID, token string) error {
	if j.state != vo.JobStateProcessing {
		return NewConflictError(j.jobUUID, fmt.Sprintf("job is %s, not processing", j.state))
	}
	if j.runnerUUID != runnerUUID {
		return NewValidationError(j.jobUUID, "job is assigned to another runner")
	}
	if j.processingToken != token {
		return NewValidationError(j.jobUUID, "job token does not match")
	}
	return nil
}

// UpdateProgress 更新进度，nil 表示仅心跳
func (j *RunnerJob) UpdateProgress(progress *int, now time.Time) error {
	if j.state != vo.JobStateProcessing {
		return NewConflictError(j.jobUUID, "job is not processing")
	}
	if progress != nil {
		if *progress < 0 || *progress > 100 {
			return NewValidationError(j.jobUUID, "progress must be between 0 and 100")
		}
		p := *progress
		j.progress = &p
	}
	j.updatedAt = now
	return nil
}

// BeginCompleting 进入 completing，handler 回调期间持有
func (j *RunnerJob) BeginCompleting(now time.Time) error {
	if err := j.transition(vo.JobStateCompleting, now); err != nil {
		return err
	}
	j.processingToken = ""
	return nil
}

// FinishCompleted 完成
func (j *RunnerJob) FinishCompleted(now time.Time) error {
	if err := j.transition(vo.JobStateCompleted, now); err != nil {
		return err
	}
	j.finish(now)
	return nil
}

// FailCompletion 完成回调失败，直接进入 errored，不再重试
func (j *RunnerJob) FailCompletion(message string, now time.Time) error {
	if j.state != vo.JobStateCompleting {
		return NewConflictError(j.jobUUID, "job is not completing")
	}
	if err := j.transition(vo.JobStateErrored, now); err != nil {
		return err
	}
	j.lastError = message
	j.finish(now)
	return nil
}

// RegisterFailure 记录一次 runner 上报的失败。
// 失败次数未达到上限且允许重试时回到 pending，否则进入 errored。
func (j *RunnerJob) RegisterFailure(message string, maxFailures int, retryable bool, now time.Time) (vo.JobState, error) {
	if j.state != vo.JobStateProcessing {
		return j.state, NewConflictError(j.jobUUID, "job is not processing")
	}
	j.failureCount++
	j.lastError = message
	if retryable && j.failureCount < maxFailures {
		j.resetToPending(now)
		return j.state, nil
	}
	if err := j.transition(vo.JobStateErrored, now); err != nil {
		return j.state, err
	}
	j.processingToken = ""
	j.finish(now)
	return j.state, nil
}

// Abort 放回队列，立即可被重新领取
func (j *RunnerJob) Abort(now time.Time) error {
	if j.state != vo.JobStateProcessing {
		return NewConflictError(j.jobUUID, "job is not processing")
	}
	j.resetToPending(now)
	return nil
}

// Cancel 显式取消
func (j *RunnerJob) Cancel(now time.Time) error {
	if err := j.transition(vo.JobStateCancelled, now); err != nil {
		return err
	}
	j.processingToken = ""
	j.finish(now)
	return nil
}

// MarkParentTerminal 父任务失败或取消后的级联终态
func (j *RunnerJob) MarkParentTerminal(state vo.JobState, message string, now time.Time) error {
	if state != vo.JobStateParentErrored && state != vo.JobStateParentCancelled {
		return NewDomainError(fmt.Sprintf("%s is not a cascade state", state))
	}
	if j.state == vo.JobStateProcessing || j.state == vo.JobStateCompleting {
		// a child only runs after its parent completed, so this is a stale cascade
		return NewConflictError(j.jobUUID, fmt.Sprintf("job is %s", j.state))
	}
	if err := j.transition(state, now); err != nil {
		return err
	}
	if message != "" {
		j.lastError = message
	}
	j.processingToken = ""
	j.finish(now)
	return nil
}

func (j *RunnerJob) resetToPending(now time.Time) {
	j.state = vo.JobStatePending
	j.processingToken = ""
	j.runnerUUID = ""
	j.progress = nil
	j.startedAt = nil
	j.finishedAt = nil
	j.updatedAt = now
}

func (j *RunnerJob) finish(now time.Time) {
	finishedAt := now
	j.finishedAt = &finishedAt
	j.progress = nil
}
