package service

import (
	"context"
	"fmt"
	"sync"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
)

// CreateJobParams handler 创建 job 的参数，各类型只读取自己关心的字段
type CreateJobParams struct {
	Video      *entity.Video
	DependsOn  *entity.RunnerJob
	Priority   int
	Resolution int
	FPS        int
	IsMainJob  bool

	// HLS
	AudioOnly bool

	// 直播
	RTMPURL string
	Outputs []vo.TranscodeOutput

	// 剪辑
	StudioTasks []vo.StudioTask
}

// JobHandler 每种 job 类型的副作用实现
type JobHandler interface {
	Type() vo.JobType
	// Counter 该类型 job 影响的视频计数器，CounterNone 表示不计数
	Counter() vo.JobInfoCounter
	SupportsAbort() bool

	// Create 构造 payload 并通过 JobCreator 持久化
	Create(ctx context.Context, params CreateJobParams) (*entity.RunnerJob, error)
	OnUpdate(ctx context.Context, job *entity.RunnerJob) error
	// OnComplete 必须可重复执行：输出路径只由 job 与视频标识推导
	OnComplete(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error
	// OnError / OnCancel / OnAbort 对已清理过的资源不得报错
	OnError(ctx context.Context, job *entity.RunnerJob, message string, fromParent bool) error
	OnCancel(ctx context.Context, job *entity.RunnerJob, fromParent bool) error
	OnAbort(ctx context.Context, job *entity.RunnerJob) error
}

// JobCreator 持久化新 job 并增加视频计数
type JobCreator interface {
	CreateJob(ctx context.Context, job *entity.RunnerJob, counter vo.JobInfoCounter) error
}

// HandlerRegistry job 类型到 handler 的查找表
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[vo.JobType]JobHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[vo.JobType]JobHandler)}
}

// Register 注册 handler，同类型重复注册会覆盖
func (r *HandlerRegistry) Register(h JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get 查找 handler
func (r *HandlerRegistry) Get(jobType vo.JobType) (JobHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %s", jobType)
	}
	return h, nil
}

// Types 已注册的类型
func (r *HandlerRegistry) Types() []vo.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]vo.JobType, 0, len(r.handlers))
	for _, t := range vo.AllJobTypes() {
		if _, ok := r.handlers[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// invokeHandler 执行 handler 回调，panic 转换为错误
func invokeHandler(jobUUID string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = entity.NewHandlerSideEffectError(jobUUID, fmt.Errorf("handler panic: %v", rec))
		}
	}()
	if err = fn(); err != nil {
		return entity.NewHandlerSideEffectError(jobUUID, err)
	}
	return nil
}
