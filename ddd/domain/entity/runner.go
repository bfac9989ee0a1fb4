package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Runner 已注册的远程转码节点
type Runner struct {
	runnerUUID    string
	token         string
	name          string
	description   string
	ip            string
	lastContactAt *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// NewRunner 注册新 runner，token 由调用方签发后通过 AssignToken 写入
func NewRunner(name, description, ip string) (*Runner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewDomainError("runner name is required")
	}
	now := time.Now()
	return &Runner{
		runnerUUID:    uuid.NewString(),
		name:          name,
		description:   description,
		ip:            ip,
		lastContactAt: &now,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// RestoreRunner 从持久化数据还原
func RestoreRunner(runnerUUID, token, name, description, ip string, lastContactAt *time.Time, createdAt, updatedAt time.Time) *Runner {
	return &Runner{
		runnerUUID:    runnerUUID,
		token:         token,
		name:          name,
		description:   description,
		ip:            ip,
		lastContactAt: lastContactAt,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (r *Runner) RunnerUUID() string        { return r.runnerUUID }
func (r *Runner) Token() string             { return r.token }
func (r *Runner) Name() string              { return r.name }
func (r *Runner) Description() string       { return r.description }
func (r *Runner) IP() string                { return r.ip }
func (r *Runner) LastContactAt() *time.Time { return r.lastContactAt }
func (r *Runner) CreatedAt() time.Time      { return r.createdAt }
func (r *Runner) UpdatedAt() time.Time      { return r.updatedAt }

// AssignToken 写入签发的 runner token
func (r *Runner) AssignToken(token string) {
	r.token = token
	r.updatedAt = time.Now()
}

// RegistrationToken 管理员创建的注册令牌，runner 凭它换取 runner token
type RegistrationToken struct {
	token     string
	createdAt time.Time
}

// NewRegistrationToken 生成新的注册令牌
func NewRegistrationToken() *RegistrationToken {
	return &RegistrationToken{
		token:     "ptrrt-" + uuid.NewString(),
		createdAt: time.Now(),
	}
}

// RestoreRegistrationToken 从持久化数据还原
func RestoreRegistrationToken(token string, createdAt time.Time) *RegistrationToken {
	return &RegistrationToken{token: token, createdAt: createdAt}
}

func (t *RegistrationToken) Token() string        { return t.token }
func (t *RegistrationToken) CreatedAt() time.Time { return t.createdAt }
