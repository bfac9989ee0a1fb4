package service

import (
	"context"
	"fmt"
	"time"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/pkg/logger"
)

// RunnerService runner 注册、认证与联系时间维护
type RunnerService interface {
	Register(ctx context.Context, registrationToken, name, description, ip string) (*entity.Runner, error)
	Unregister(ctx context.Context, runner *entity.Runner) error
	// Authenticate 校验 runner token，未知 token 返回 entity.ErrRunnerNotFound
	Authenticate(ctx context.Context, runnerToken string) (*entity.Runner, error)
	// RecordContact 节流写入最近联系时间
	RecordContact(ctx context.Context, runner *entity.Runner)
	List(ctx context.Context, limit, offset int) ([]*entity.Runner, int64, error)

	CreateRegistrationToken(ctx context.Context) (*entity.RegistrationToken, error)
	ListRegistrationTokens(ctx context.Context) ([]*entity.RegistrationToken, error)
}

type runnerServiceImpl struct {
	runnerRepo repo.RunnerRepository
	jobs       RunnerJobService
	issuer     gateway.RunnerTokenIssuer
	throttle   gateway.ContactThrottle
}

// NewRunnerService 创建 runner 服务
func NewRunnerService(runnerRepo repo.RunnerRepository, jobs RunnerJobService, issuer gateway.RunnerTokenIssuer, throttle gateway.ContactThrottle) RunnerService {
	return &runnerServiceImpl{
		runnerRepo: runnerRepo,
		jobs:       jobs,
		issuer:     issuer,
		throttle:   throttle,
	}
}

func (s *runnerServiceImpl) Register(ctx context.Context, registrationToken, name, description, ip string) (*entity.Runner, error) {
	token, err := s.runnerRepo.GetRegistrationToken(ctx, registrationToken)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, entity.ErrRegistrationTokenNotFound
	}

	runner, err := entity.NewRunner(name, description, ip)
	if err != nil {
		return nil, err
	}
	runnerToken, err := s.issuer.Issue(runner.RunnerUUID())
	if err != nil {
		return nil, fmt.Errorf("issue runner token: %w", err)
	}
	runner.AssignToken(runnerToken)

	if err := s.runnerRepo.Create(ctx, runner); err != nil {
		return nil, err
	}
	logger.Infof("runner registered runner_uuid=%s name=%s ip=%s", runner.RunnerUUID(), runner.Name(), ip)
	return runner, nil
}

func (s *runnerServiceImpl) Unregister(ctx context.Context, runner *entity.Runner) error {
	jobs, err := s.processingJobs(ctx, runner)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if _, err := s.jobs.ForceError(ctx, job.JobUUID(), "runner unregistered"); err != nil {
			logger.Warnf("release job of unregistered runner failed job_uuid=%s error=%v", job.JobUUID(), err)
		}
	}
	if err := s.runnerRepo.Delete(ctx, runner); err != nil {
		return err
	}
	logger.Infof("runner unregistered runner_uuid=%s released_jobs=%d", runner.RunnerUUID(), len(jobs))
	return nil
}

func (s *runnerServiceImpl) processingJobs(ctx context.Context, runner *entity.Runner) ([]*entity.RunnerJob, error) {
	if s.jobs == nil {
		return nil, nil
	}
	return s.jobs.ListProcessingByRunner(ctx, runner.RunnerUUID())
}

func (s *runnerServiceImpl) Authenticate(ctx context.Context, runnerToken string) (*entity.Runner, error) {
	runnerUUID, err := s.issuer.Parse(runnerToken)
	if err != nil {
		return nil, entity.ErrRunnerNotFound
	}
	runner, err := s.runnerRepo.GetByToken(ctx, runnerToken)
	if err != nil {
		return nil, err
	}
	if runner == nil || runner.RunnerUUID() != runnerUUID {
		return nil, entity.ErrRunnerNotFound
	}
	return runner, nil
}

func (s *runnerServiceImpl) RecordContact(ctx context.Context, runner *entity.Runner) {
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, runner.RunnerUUID())
		if err != nil {
			logger.Warnf("contact throttle unavailable runner_uuid=%s error=%v", runner.RunnerUUID(), err)
		}
		if err == nil && !allowed {
			return
		}
	}
	if err := s.runnerRepo.TouchContact(ctx, runner.RunnerUUID(), time.Now()); err != nil {
		logger.Warnf("update runner contact failed runner_uuid=%s error=%v", runner.RunnerUUID(), err)
	}
}

func (s *runnerServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.Runner, int64, error) {
	return s.runnerRepo.List(ctx, limit, offset)
}

func (s *runnerServiceImpl) CreateRegistrationToken(ctx context.Context) (*entity.RegistrationToken, error) {
	token := entity.NewRegistrationToken()
	if err := s.runnerRepo.CreateRegistrationToken(ctx, token); err != nil {
		return nil, err
	}
	logger.Infof("registration token created")
	return token, nil
}

func (s *runnerServiceImpl) ListRegistrationTokens(ctx context.Context) ([]*entity.RegistrationToken, error) {
	return s.runnerRepo.ListRegistrationTokens(ctx)
}
