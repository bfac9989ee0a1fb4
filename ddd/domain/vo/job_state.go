package vo

// JobState runner job 状态
type JobState string

const (
	// JobStatePending 可被 runner 领取
	JobStatePending JobState = "pending"
	// JobStateWaitingForParent 等待父任务完成
	JobStateWaitingForParent JobState = "waiting_for_parent_job"
	// JobStateProcessing 已被某个 runner 领取
	JobStateProcessing JobState = "processing"
	// JobStateCompleting 正在执行完成回调
	JobStateCompleting JobState = "completing"
	JobStateCompleted  JobState = "completed"
	JobStateErrored    JobState = "errored"
	JobStateCancelled  JobState = "cancelled"
	// JobStateParentErrored 父任务失败导致的级联终态
	JobStateParentErrored JobState = "parent_errored"
	// JobStateParentCancelled 父任务取消导致的级联终态
	JobStateParentCancelled JobState = "parent_cancelled"
)

// IsValid 检查状态是否有效
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateWaitingForParent, JobStateProcessing, JobStateCompleting,
		JobStateCompleted, JobStateErrored, JobStateCancelled, JobStateParentErrored, JobStateParentCancelled:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s JobState) String() string {
	return string(s)
}

// IsTerminal 是否为终态
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateErrored, JobStateCancelled, JobStateParentErrored, JobStateParentCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobState) CanTransitionTo(target JobState) bool {
	if s.IsTerminal() {
		return false
	}
	if target == JobStateCancelled {
		return true
	}
	switch s {
	case JobStateWaitingForParent:
		return target == JobStatePending || target == JobStateParentErrored || target == JobStateParentCancelled
	case JobStatePending:
		return target == JobStateProcessing || target == JobStateParentErrored || target == JobStateParentCancelled
	case JobStateProcessing:
		return target == JobStateCompleting || target == JobStatePending || target == JobStateErrored
	case JobStateCompleting:
		return target == JobStateCompleted || target == JobStateErrored
	default:
		return false
	}
}

// ActiveJobStates 非终态集合
func ActiveJobStates() []JobState {
	return []JobState{JobStatePending, JobStateWaitingForParent, JobStateProcessing, JobStateCompleting}
}
