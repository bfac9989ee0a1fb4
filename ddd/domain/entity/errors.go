package entity

import (
	"errors"
	"fmt"
)

// DomainError 领域规则错误
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError 创建领域错误
func NewDomainError(msg string) *DomainError {
	return &DomainError{Message: msg}
}

// ErrorKind 错误分类
type ErrorKind int

const (
	// KindConflict 状态已被并发修改，调用方重新拉取即可
	KindConflict ErrorKind = iota + 1
	// KindValidation 参数或身份校验失败，job 状态未变
	KindValidation
	// KindTransientJobFailure job 出错但会自动重试
	KindTransientJobFailure
	// KindTerminalJobFailure job 进入 errored，需要人工介入
	KindTerminalJobFailure
	// KindHandlerSideEffect handler 回调执行失败
	KindHandlerSideEffect
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindTransientJobFailure:
		return "transient_job_failure"
	case KindTerminalJobFailure:
		return "terminal_job_failure"
	case KindHandlerSideEffect:
		return "handler_side_effect_failure"
	default:
		return "unknown"
	}
}

// JobError 带分类的 job 错误
type JobError struct {
	Kind    ErrorKind
	JobUUID string
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.JobUUID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: job %s: %s", e.Kind, e.JobUUID, e.Message)
}

func (e *JobError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrConflict) 按分类匹配
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	if !ok {
		return false
	}
	return t.JobUUID == "" && t.Message == "" && t.Kind == e.Kind
}

// 分类哨兵，只用于 errors.Is 比较
var (
	ErrConflict            = &JobError{Kind: KindConflict}
	ErrValidation          = &JobError{Kind: KindValidation}
	ErrTransientJobFailure = &JobError{Kind: KindTransientJobFailure}
	ErrTerminalJobFailure  = &JobError{Kind: KindTerminalJobFailure}
	ErrHandlerSideEffect   = &JobError{Kind: KindHandlerSideEffect}
)

// 具体错误
var (
	ErrJobNotFound               = errors.New("runner job not found")
	ErrRunnerNotFound            = errors.New("runner not found")
	ErrRegistrationTokenNotFound = errors.New("registration token not found")
	ErrVideoNotFound             = errors.New("video not found")
	ErrCounterUnderflow          = errors.New("job info counter would go below zero")
	ErrInvalidVideoState         = errors.New("video state does not allow this operation")
	ErrStaleJob                  = errors.New("runner job was modified after it was loaded")
)

func NewConflictError(jobUUID, msg string) error {
	return &JobError{Kind: KindConflict, JobUUID: jobUUID, Message: msg}
}

// NewStaleJobError 条件写入未命中：状态或版本号已被他人改动
func NewStaleJobError(jobUUID string, expected string) error {
	return &JobError{
		Kind:    KindConflict,
		JobUUID: jobUUID,
		Message: fmt.Sprintf("job is no longer %s or was modified concurrently", expected),
		Err:     ErrStaleJob,
	}
}

func NewValidationError(jobUUID, msg string) error {
	return &JobError{Kind: KindValidation, JobUUID: jobUUID, Message: msg}
}

// WrapValidationError 以校验错误分类包装底层错误
func WrapValidationError(err error) error {
	return &JobError{Kind: KindValidation, Message: err.Error(), Err: err}
}

// NewHandlerSideEffectError 包装 handler 回调异常，保留原始信息
func NewHandlerSideEffectError(jobUUID string, err error) error {
	msg := "handler failed"
	if err != nil {
		msg = err.Error()
	}
	return &JobError{Kind: KindHandlerSideEffect, JobUUID: jobUUID, Message: msg, Err: err}
}

// KindOf 返回错误分类，非 JobError 返回 0
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return 0
}
