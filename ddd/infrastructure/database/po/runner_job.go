package po

import "time"

// RunnerJobPO runner job 持久化对象
type RunnerJobPO struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	JobUUID         string     `gorm:"uniqueIndex;size:36;not null" json:"job_uuid"`
	Type            string     `gorm:"size:40;not null" json:"type"`
	State           string     `gorm:"index:idx_runner_jobs_state_priority,priority:1;size:32;not null" json:"state"`
	Priority        int        `gorm:"index:idx_runner_jobs_state_priority,priority:2;not null" json:"priority"`
	Payload         JSONRaw    `gorm:"type:json" json:"payload"`
	PrivatePayload  JSONRaw    `gorm:"type:json" json:"private_payload"`
	FailureCount    int        `gorm:"not null;default:0" json:"failure_count"`
	LastError       string     `gorm:"type:text" json:"last_error"`
	Progress        *int       `json:"progress"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	ProcessingToken string     `gorm:"size:36" json:"processing_token"`
	DependsOnUUID   string     `gorm:"index;size:36" json:"depends_on_uuid"`
	RunnerUUID      string     `gorm:"index;size:36" json:"runner_uuid"`
	VideoUUID       string     `gorm:"index;size:36" json:"video_uuid"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `gorm:"not null;default:0" json:"version"`
}

// TableName 指定表名
func (RunnerJobPO) TableName() string {
	return "runner_jobs"
}
