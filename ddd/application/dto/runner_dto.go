package dto

import (
	"time"

	"transcode-orchestrator/ddd/domain/entity"
)

// RegisteredRunnerDTO 注册结果
type RegisteredRunnerDTO struct {
	RunnerUUID  string `json:"runnerUUID"`
	RunnerToken string `json:"runnerToken"`
}

// RunnerDTO runner 信息，不含 token
type RunnerDTO struct {
	UUID          string     `json:"uuid"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	IP            string     `json:"ip,omitempty"`
	LastContactAt *time.Time `json:"lastContact,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewRunnerDTO 实体转 DTO
func NewRunnerDTO(r *entity.Runner) *RunnerDTO {
	return &RunnerDTO{
		UUID:          r.RunnerUUID(),
		Name:          r.Name(),
		Description:   r.Description(),
		IP:            r.IP(),
		LastContactAt: r.LastContactAt(),
		CreatedAt:     r.CreatedAt(),
	}
}

// RunnerListDTO 分页结果
type RunnerListDTO struct {
	Total int64        `json:"total"`
	Data  []*RunnerDTO `json:"data"`
}

// RegistrationTokenDTO 注册令牌
type RegistrationTokenDTO struct {
	RegistrationToken string    `json:"registrationToken"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewRegistrationTokenDTO 实体转 DTO
func NewRegistrationTokenDTO(t *entity.RegistrationToken) *RegistrationTokenDTO {
	return &RegistrationTokenDTO{RegistrationToken: t.Token(), CreatedAt: t.CreatedAt()}
}
