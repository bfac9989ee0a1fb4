package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// MessageAbortNotSupported 不支持中止的类型被中止时记录的错误
const MessageAbortNotSupported = "aborted but not supported"

// maxStaleRetries 进度上报遇到版本冲突时的最多尝试次数
const maxStaleRetries = 3

// RunnerJobService runner job 状态机
type RunnerJobService interface {
	JobCreator

	// Get 获取 job，不存在返回 entity.ErrJobNotFound
	Get(ctx context.Context, jobUUID string) (*entity.RunnerJob, error)
	List(ctx context.Context, filter repo.RunnerJobFilter) ([]*entity.RunnerJob, int64, error)
	// ListAvailable 获取可领取的 job
	ListAvailable(ctx context.Context, limit int, types []vo.JobType) ([]*entity.RunnerJob, error)
	// ListProcessingByRunner runner 正在处理的 job
	ListProcessingByRunner(ctx context.Context, runnerUUID string) ([]*entity.RunnerJob, error)
	// ListStale 最后活跃时间早于 before 的处理中 job
	ListStale(ctx context.Context, before time.Time, limit int) ([]*entity.RunnerJob, error)

	// Accept pending -> processing，并发领取只有一个成功
	Accept(ctx context.Context, jobUUID, runnerUUID string) (*entity.RunnerJob, error)
	// Update 更新进度
	Update(ctx context.Context, jobUUID, runnerUUID, jobToken string, progress *int) (*entity.RunnerJob, error)
	// Complete processing -> completing -> completed
	Complete(ctx context.Context, jobUUID, runnerUUID, jobToken string, result vo.JobResultPayload) (*entity.RunnerJob, error)
	// Error runner 上报失败
	Error(ctx context.Context, jobUUID, runnerUUID, jobToken, message string) (*entity.RunnerJob, error)
	// Abort runner 放弃 job
	Abort(ctx context.Context, jobUUID, runnerUUID, jobToken, reason string) (*entity.RunnerJob, error)
	// Cancel 管理端取消
	Cancel(ctx context.Context, jobUUID string) (*entity.RunnerJob, error)
	// ForceError 不校验归属直接按失败处理，用于失联 runner 的 job
	ForceError(ctx context.Context, jobUUID, message string) (*entity.RunnerJob, error)
}

// RunnerJobServiceOptions 状态机参数
type RunnerJobServiceOptions struct {
	MaxFailures int
}

type runnerJobServiceImpl struct {
	jobRepo     repo.RunnerJobRepository
	jobInfoRepo repo.JobInfoRepository
	handlers    *HandlerRegistry
	publication PublicationService
	notifier    gateway.JobNotifier
	maxFailures int
	now         func() time.Time
}

// NewRunnerJobService 创建状态机，notifier 可为空
func NewRunnerJobService(jobRepo repo.RunnerJobRepository, jobInfoRepo repo.JobInfoRepository, handlers *HandlerRegistry,
	publication PublicationService, notifier gateway.JobNotifier, opts RunnerJobServiceOptions) RunnerJobService {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	return &runnerJobServiceImpl{
		jobRepo:     jobRepo,
		jobInfoRepo: jobInfoRepo,
		handlers:    handlers,
		publication: publication,
		notifier:    notifier,
		maxFailures: opts.MaxFailures,
		now:         time.Now,
	}
}

func (s *runnerJobServiceImpl) CreateJob(ctx context.Context, job *entity.RunnerJob, counter vo.JobInfoCounter) error {
	// 计数先于 job 落库，避免 job 被领取完成时计数尚未增加
	if counter.IsValid() {
		if _, err := s.jobInfoRepo.Increase(ctx, job.VideoUUID(), counter); err != nil {
			return fmt.Errorf("increase %s for video %s: %w", counter, job.VideoUUID(), err)
		}
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		if counter.IsValid() {
			if _, decErr := s.jobInfoRepo.Decrease(ctx, job.VideoUUID(), counter); decErr != nil {
				logger.Errorf("rollback job counter failed video_uuid=%s error=%v", job.VideoUUID(), decErr)
			}
		}
		return fmt.Errorf("create runner job: %w", err)
	}

	logger.Info("runner job created", map[string]interface{}{
		"job_uuid":   job.JobUUID(),
		"type":       job.Type().String(),
		"state":      job.State().String(),
		"priority":   job.Priority(),
		"video_uuid": job.VideoUUID(),
		"depends_on": job.DependsOnUUID(),
	})
	if job.State() == vo.JobStatePending {
		s.notify(ctx)
	}
	return nil
}

func (s *runnerJobServiceImpl) Get(ctx context.Context, jobUUID string) (*entity.RunnerJob, error) {
	job, err := s.jobRepo.GetByUUID(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, entity.ErrJobNotFound
	}
	return job, nil
}

func (s *runnerJobServiceImpl) List(ctx context.Context, filter repo.RunnerJobFilter) ([]*entity.RunnerJob, int64, error) {
	return s.jobRepo.List(ctx, filter)
}

func (s *runnerJobServiceImpl) ListAvailable(ctx context.Context, limit int, types []vo.JobType) ([]*entity.RunnerJob, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.jobRepo.ListAvailable(ctx, limit, types)
}

func (s *runnerJobServiceImpl) ListProcessingByRunner(ctx context.Context, runnerUUID string) ([]*entity.RunnerJob, error) {
	return s.jobRepo.ListProcessingByRunner(ctx, runnerUUID)
}

func (s *runnerJobServiceImpl) ListStale(ctx context.Context, before time.Time, limit int) ([]*entity.RunnerJob, error) {
	return s.jobRepo.ListStaleProcessing(ctx, before, limit)
}

func (s *runnerJobServiceImpl) Accept(ctx context.Context, jobUUID, runnerUUID string) (*entity.RunnerJob, error) {
	job, err := s.Get(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if _, err := job.Accept(runnerUUID, s.now()); err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStatePending); err != nil {
		return nil, err
	}
	logger.Infof("runner job accepted job_uuid=%s runner_uuid=%s", jobUUID, runnerUUID)
	return job, nil
}

// owned 加载 job 并校验归属
func (s *runnerJobServiceImpl) owned(ctx context.Context, jobUUID, runnerUUID, jobToken string) (*entity.RunnerJob, JobHandler, error) {
	job, err := s.Get(ctx, jobUUID)
	if err != nil {
		return nil, nil, err
	}
	if err := job.CheckOwnership(runnerUUID, jobToken); err != nil {
		return nil, nil, err
	}
	h, err := s.handlers.Get(job.Type())
	if err != nil {
		return nil, nil, err
	}
	return job, h, nil
}

func (s *runnerJobServiceImpl) Update(ctx context.Context, jobUUID, runnerUUID, jobToken string, progress *int) (*entity.RunnerJob, error) {
	var (
		job *entity.RunnerJob
		h   JobHandler
		err error
	)
	// 同一 runner 的并发上报只会撞版本号，重新加载后归属仍成立就重试
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		job, h, err = s.owned(ctx, jobUUID, runnerUUID, jobToken)
		if err != nil {
			return nil, err
		}
		if err = job.UpdateProgress(progress, s.now()); err != nil {
			return nil, err
		}
		err = s.jobRepo.UpdateIfState(ctx, job, vo.JobStateProcessing)
		if !errors.Is(err, entity.ErrStaleJob) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if err := invokeHandler(jobUUID, func() error { return h.OnUpdate(ctx, job) }); err != nil {
		logger.Warnf("runner job update hook failed job_uuid=%s error=%v", jobUUID, err)
	}
	return job, nil
}

func (s *runnerJobServiceImpl) Complete(ctx context.Context, jobUUID, runnerUUID, jobToken string, result vo.JobResultPayload) (*entity.RunnerJob, error) {
	job, h, err := s.owned(ctx, jobUUID, runnerUUID, jobToken)
	if err != nil {
		return nil, err
	}
	if err := job.BeginCompleting(s.now()); err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStateProcessing); err != nil {
		return nil, err
	}

	hookErr := invokeHandler(jobUUID, func() error { return h.OnComplete(ctx, job, result) })
	if hookErr != nil {
		logger.Error("runner job completion failed", map[string]interface{}{
			"job_uuid": jobUUID,
			"type":     job.Type().String(),
			"error":    hookErr.Error(),
		})
		if err := job.FailCompletion(hookErr.Error(), s.now()); err != nil {
			return nil, err
		}
		if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStateCompleting); err != nil {
			return nil, err
		}
		s.afterTerminal(ctx, job, h)
		return job, nil
	}

	if err := job.FinishCompleted(s.now()); err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStateCompleting); err != nil {
		return nil, err
	}
	logger.Infof("runner job completed job_uuid=%s type=%s video_uuid=%s", jobUUID, job.Type(), job.VideoUUID())

	released, err := s.jobRepo.ReleaseChildren(ctx, jobUUID)
	if err != nil {
		logger.Errorf("release child jobs failed job_uuid=%s error=%v", jobUUID, err)
	} else if released > 0 {
		logger.Infof("child jobs released parent_uuid=%s count=%d", jobUUID, released)
		s.notify(ctx)
	}

	s.settleAsset(ctx, job, h)
	return job, nil
}

func (s *runnerJobServiceImpl) Error(ctx context.Context, jobUUID, runnerUUID, jobToken, message string) (*entity.RunnerJob, error) {
	job, h, err := s.owned(ctx, jobUUID, runnerUUID, jobToken)
	if err != nil {
		return nil, err
	}
	return s.registerFailure(ctx, job, h, message)
}

func (s *runnerJobServiceImpl) ForceError(ctx context.Context, jobUUID, message string) (*entity.RunnerJob, error) {
	job, err := s.Get(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if job.State() != vo.JobStateProcessing {
		return nil, entity.NewConflictError(jobUUID, fmt.Sprintf("job is %s, not processing", job.State()))
	}
	h, err := s.handlers.Get(job.Type())
	if err != nil {
		return nil, err
	}
	return s.registerFailure(ctx, job, h, message)
}

// registerFailure 失败计数加一，未到上限且类型支持中止时回到 pending，否则 errored 并级联
func (s *runnerJobServiceImpl) registerFailure(ctx context.Context, job *entity.RunnerJob, h JobHandler, message string) (*entity.RunnerJob, error) {
	jobUUID := job.JobUUID()
	if err := invokeHandler(jobUUID, func() error { return h.OnError(ctx, job, message, false) }); err != nil {
		logger.Warnf("runner job error hook failed job_uuid=%s error=%v", jobUUID, err)
	}

	state, err := job.RegisterFailure(message, s.maxFailures, h.SupportsAbort(), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStateProcessing); err != nil {
		return nil, err
	}

	if state == vo.JobStatePending {
		logger.Warn("runner job failed, will retry", map[string]interface{}{
			"job_uuid":      jobUUID,
			"failure_count": job.FailureCount(),
			"error":         message,
		})
		s.notify(ctx)
		return job, nil
	}

	logger.Error("runner job errored", map[string]interface{}{
		"job_uuid":      jobUUID,
		"failure_count": job.FailureCount(),
		"error":         message,
	})
	s.afterTerminal(ctx, job, h)
	return job, nil
}

func (s *runnerJobServiceImpl) Abort(ctx context.Context, jobUUID, runnerUUID, jobToken, reason string) (*entity.RunnerJob, error) {
	job, h, err := s.owned(ctx, jobUUID, runnerUUID, jobToken)
	if err != nil {
		return nil, err
	}
	if !h.SupportsAbort() {
		return s.registerFailure(ctx, job, h, MessageAbortNotSupported)
	}

	if err := invokeHandler(jobUUID, func() error { return h.OnAbort(ctx, job) }); err != nil {
		logger.Warnf("runner job abort hook failed job_uuid=%s error=%v", jobUUID, err)
	}
	if err := job.Abort(s.now()); err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, vo.JobStateProcessing); err != nil {
		return nil, err
	}
	logger.Infof("runner job aborted job_uuid=%s runner_uuid=%s reason=%s", jobUUID, runnerUUID, reason)
	s.notify(ctx)
	return job, nil
}

func (s *runnerJobServiceImpl) Cancel(ctx context.Context, jobUUID string) (*entity.RunnerJob, error) {
	job, err := s.Get(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if job.State().IsTerminal() {
		return nil, entity.NewConflictError(jobUUID, fmt.Sprintf("job is already %s", job.State()))
	}
	h, err := s.handlers.Get(job.Type())
	if err != nil {
		return nil, err
	}

	if err := invokeHandler(jobUUID, func() error { return h.OnCancel(ctx, job, false) }); err != nil {
		logger.Warnf("runner job cancel hook failed job_uuid=%s error=%v", jobUUID, err)
	}
	expected := job.State()
	if err := job.Cancel(s.now()); err != nil {
		return nil, err
	}
	if err := s.jobRepo.UpdateIfState(ctx, job, expected); err != nil {
		return nil, err
	}
	logger.Infof("runner job cancelled job_uuid=%s previous_state=%s", jobUUID, expected)
	s.afterTerminal(ctx, job, h)
	return job, nil
}

// afterTerminal errored/cancelled 之后：先级联子任务，再结算视频计数
func (s *runnerJobServiceImpl) afterTerminal(ctx context.Context, job *entity.RunnerJob, h JobHandler) {
	target := vo.JobStateParentErrored
	if job.State() == vo.JobStateCancelled {
		target = vo.JobStateParentCancelled
	}
	s.cascade(ctx, job, target)
	s.settleAsset(ctx, job, h)
}

// cascade 深度优先：子任务 hook -> 子任务终态 -> 子任务的子任务
func (s *runnerJobServiceImpl) cascade(ctx context.Context, parent *entity.RunnerJob, target vo.JobState) {
	children, err := s.jobRepo.ListChildren(ctx, parent.JobUUID())
	if err != nil {
		logger.Errorf("list child jobs failed parent_uuid=%s error=%v", parent.JobUUID(), err)
		return
	}

	message := ""
	if target == vo.JobStateParentErrored {
		message = fmt.Sprintf("parent job %s errored: %s", parent.JobUUID(), parent.LastError())
	}

	for _, child := range children {
		if child.State().IsTerminal() {
			continue
		}
		h, err := s.handlers.Get(child.Type())
		if err != nil {
			logger.Errorf("cascade skipped child job_uuid=%s error=%v", child.JobUUID(), err)
			continue
		}

		childUUID := child.JobUUID()
		var hookErr error
		if target == vo.JobStateParentErrored {
			hookErr = invokeHandler(childUUID, func() error { return h.OnError(ctx, child, message, true) })
		} else {
			hookErr = invokeHandler(childUUID, func() error { return h.OnCancel(ctx, child, true) })
		}
		if hookErr != nil {
			logger.Warnf("cascade hook failed job_uuid=%s error=%v", childUUID, hookErr)
		}

		expected := child.State()
		if err := child.MarkParentTerminal(target, message, s.now()); err != nil {
			logger.Warnf("cascade transition refused job_uuid=%s state=%s error=%v", childUUID, expected, err)
			continue
		}
		if err := s.jobRepo.UpdateIfState(ctx, child, expected); err != nil {
			// 子任务被并发修改，由修改方负责它自己的后续
			logger.Warnf("cascade lost race job_uuid=%s error=%v", childUUID, err)
			continue
		}
		logger.Infof("runner job cascaded job_uuid=%s state=%s parent_uuid=%s", childUUID, target, parent.JobUUID())

		s.settleAsset(ctx, child, h)
		s.cascade(ctx, child, target)
	}
}

// settleAsset job 结束与视频进度之间唯一的衔接点
func (s *runnerJobServiceImpl) settleAsset(ctx context.Context, job *entity.RunnerJob, h JobHandler) {
	// 直播不计数，任意终态都意味着直播结束
	if job.Type() == vo.JobTypeLiveTranscoding {
		if s.publication == nil || job.VideoUUID() == "" {
			return
		}
		if err := s.publication.MarkLiveEnded(ctx, job.VideoUUID()); err != nil {
			logger.Errorf("mark live ended failed video_uuid=%s error=%v", job.VideoUUID(), err)
		}
		return
	}

	counter := h.Counter()
	if !counter.IsValid() || job.VideoUUID() == "" {
		return
	}
	videoUUID := job.VideoUUID()

	remaining, err := s.jobInfoRepo.Decrease(ctx, videoUUID, counter)
	if err != nil {
		if errors.Is(err, entity.ErrCounterUnderflow) {
			logger.Error("job counter underflow", map[string]interface{}{
				"job_uuid":   job.JobUUID(),
				"video_uuid": videoUUID,
				"counter":    counter.String(),
			})
		} else {
			logger.Errorf("decrease job counter failed video_uuid=%s error=%v", videoUUID, err)
		}
		return
	}

	if s.publication == nil {
		return
	}
	if job.State() == vo.JobStateErrored {
		if err := s.publication.MoveToFailedTranscoding(ctx, videoUUID); err != nil {
			logger.Errorf("move video to failed state failed video_uuid=%s error=%v", videoUUID, err)
		}
	}
	if remaining == 0 && counter == vo.CounterPendingTranscode {
		if err := s.publication.OnTranscodingDrained(ctx, videoUUID); err != nil {
			logger.Errorf("advance video failed video_uuid=%s error=%v", videoUUID, err)
		}
	}
}

func (s *runnerJobServiceImpl) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyJobsAvailable(ctx); err != nil {
		logger.Warnf("notify runners failed error=%v", err)
	}
}
