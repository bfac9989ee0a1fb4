package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/ddd/application/dto"
	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/errno"
	"transcode-orchestrator/pkg/logger"
)

var (
	singleRunnerDispatchApp RunnerDispatchApp
	onceRunnerDispatchApp   sync.Once
)

// DownloadFile runner 可下载的输入文件
type DownloadFile struct {
	Name   string
	Size   int64
	Reader io.ReadCloser
}

// RunnerDispatchApp runner 协议：注册、拉取、领取、上报
type RunnerDispatchApp interface {
	Register(ctx context.Context, req *cqe.RegisterRunnerReq) (*dto.RegisteredRunnerDTO, error)
	Unregister(ctx context.Context, req *cqe.RunnerAuthReq) error
	// RequestJobs 没有可领取任务时最多等待 MaxRequestWait
	RequestJobs(ctx context.Context, req *cqe.RequestJobsReq) (*dto.AvailableJobsDTO, error)
	Accept(ctx context.Context, jobUUID string, req *cqe.RunnerAuthReq) (*dto.AcceptedJobDTO, error)
	Update(ctx context.Context, jobUUID string, req *cqe.UpdateJobReq) error
	// Success uploads 为 multipart 上传的结果文件，先写入暂存目录再完成 job
	Success(ctx context.Context, jobUUID string, req *cqe.SuccessJobReq, uploads []cqe.UploadedFile) error
	Error(ctx context.Context, jobUUID string, req *cqe.ErrorJobReq) error
	Abort(ctx context.Context, jobUUID string, req *cqe.AbortJobReq) error
	// DownloadInput 下载 job 的源文件或预览图
	DownloadInput(ctx context.Context, req *cqe.DownloadFileReq) (*DownloadFile, error)
}

type runnerDispatchAppImpl struct {
	engine *Engine
}

// DefaultRunnerDispatchApp 获取单例
func DefaultRunnerDispatchApp() RunnerDispatchApp {
	assert.NotCircular()
	onceRunnerDispatchApp.Do(func() {
		singleRunnerDispatchApp = NewRunnerDispatchApp(DefaultEngine())
	})
	assert.NotNil(singleRunnerDispatchApp)
	return singleRunnerDispatchApp
}

// NewRunnerDispatchApp 创建 runner 协议应用
func NewRunnerDispatchApp(engine *Engine) RunnerDispatchApp {
	return &runnerDispatchAppImpl{engine: engine}
}

// authenticate 校验 runner token 并记录联系时间
func (a *runnerDispatchAppImpl) authenticate(ctx context.Context, runnerToken string) (*entity.Runner, error) {
	runner, err := a.engine.Runners.Authenticate(ctx, runnerToken)
	if err != nil {
		return nil, toBizError(err)
	}
	a.engine.Runners.RecordContact(ctx, runner)
	return runner, nil
}

func (a *runnerDispatchAppImpl) Register(ctx context.Context, req *cqe.RegisterRunnerReq) (*dto.RegisteredRunnerDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runner, err := a.engine.Runners.Register(ctx, req.RegistrationToken, req.Name, req.Description, req.IP)
	if err != nil {
		return nil, toBizError(err)
	}
	return &dto.RegisteredRunnerDTO{RunnerUUID: runner.RunnerUUID(), RunnerToken: runner.Token()}, nil
}

func (a *runnerDispatchAppImpl) Unregister(ctx context.Context, req *cqe.RunnerAuthReq) error {
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := a.engine.Runners.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return toBizError(err)
	}
	return toBizError(a.engine.Runners.Unregister(ctx, runner))
}

func (a *runnerDispatchAppImpl) RequestJobs(ctx context.Context, req *cqe.RequestJobsReq) (*dto.AvailableJobsDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := a.authenticate(ctx, req.RunnerToken); err != nil {
		return nil, err
	}

	jobs, err := a.engine.Jobs.ListAvailable(ctx, a.engine.AvailableJobsLimit, req.Types())
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if len(jobs) > 0 || a.engine.Notifier == nil || a.engine.MaxRequestWait <= 0 {
		return dto.NewAvailableJobsDTO(jobs), nil
	}

	if !a.waitForJobs(ctx) {
		return dto.NewAvailableJobsDTO(nil), nil
	}
	jobs, err = a.engine.Jobs.ListAvailable(ctx, a.engine.AvailableJobsLimit, req.Types())
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewAvailableJobsDTO(jobs), nil
}

// waitForJobs 等待新任务通知，超时或请求结束返回 false
func (a *runnerDispatchAppImpl) waitForJobs(ctx context.Context) bool {
	ch, cancel, err := a.engine.Notifier.Subscribe(ctx)
	if err != nil {
		logger.Warnf("subscribe job notifications failed error=%v", err)
		return false
	}
	defer cancel()

	timer := time.NewTimer(a.engine.MaxRequestWait)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (a *runnerDispatchAppImpl) Accept(ctx context.Context, jobUUID string, req *cqe.RunnerAuthReq) (*dto.AcceptedJobDTO, error) {
	if jobUUID == "" {
		return nil, errno.ErrJobUUIDRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return nil, err
	}
	job, err := a.engine.Jobs.Accept(ctx, jobUUID, runner.RunnerUUID())
	if err != nil {
		if entity.KindOf(err) == entity.KindConflict {
			return nil, errno.NewBizError(errno.ErrJobNotAvailable, err)
		}
		return nil, toBizError(err)
	}
	return dto.NewAcceptedJobDTO(job), nil
}

func (a *runnerDispatchAppImpl) Update(ctx context.Context, jobUUID string, req *cqe.UpdateJobReq) error {
	if jobUUID == "" {
		return errno.ErrJobUUIDRequired
	}
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return err
	}
	_, err = a.engine.Jobs.Update(ctx, jobUUID, runner.RunnerUUID(), req.JobToken, req.Progress)
	return toBizError(err)
}

func (a *runnerDispatchAppImpl) Success(ctx context.Context, jobUUID string, req *cqe.SuccessJobReq, uploads []cqe.UploadedFile) error {
	if jobUUID == "" {
		return errno.ErrJobUUIDRequired
	}
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return err
	}

	if len(uploads) > 0 {
		// 校验归属后才写入暂存目录，避免任意 runner 写文件
		job, err := a.engine.Jobs.Get(ctx, jobUUID)
		if err != nil {
			return toBizError(err)
		}
		if err := job.CheckOwnership(runner.RunnerUUID(), req.JobToken); err != nil {
			return toBizError(err)
		}
		if err := a.stageUploads(jobUUID, &req.Payload, uploads); err != nil {
			return err
		}
	}

	_, err = a.engine.Jobs.Complete(ctx, jobUUID, runner.RunnerUUID(), req.JobToken, req.Payload)
	return toBizError(err)
}

func (a *runnerDispatchAppImpl) stageUploads(jobUUID string, payload *vo.JobResultPayload, uploads []cqe.UploadedFile) error {
	for _, up := range uploads {
		name := filepath.Base(up.Filename)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return errno.NewBizError(errno.ErrInvalidJobPayload, fmt.Errorf("invalid file name %q", up.Filename))
		}
		field := strings.TrimSuffix(strings.TrimPrefix(up.Field, "payload["), "]")
		switch field {
		case "videoFile":
			payload.VideoFile = name
		case "resolutionPlaylistFile":
			payload.ResolutionPlaylistFile = name
		default:
			return errno.NewBizError(errno.ErrInvalidJobPayload, fmt.Errorf("unexpected file field %q", up.Field))
		}

		r, err := up.Open()
		if err != nil {
			return errno.NewBizError(errno.ErrInvalidJobPayload, err)
		}
		path := a.engine.Store.StagingPath(jobUUID, name)
		n, err := a.engine.Store.SaveStream(path, r)
		r.Close()
		if err != nil {
			return errno.NewBizError(errno.ErrInternalServer, fmt.Errorf("stage %s: %w", name, err))
		}
		logger.Debugf("runner upload staged job_uuid=%s field=%s size=%d", jobUUID, field, n)
	}
	return nil
}

func (a *runnerDispatchAppImpl) Error(ctx context.Context, jobUUID string, req *cqe.ErrorJobReq) error {
	if jobUUID == "" {
		return errno.ErrJobUUIDRequired
	}
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return err
	}
	_, err = a.engine.Jobs.Error(ctx, jobUUID, runner.RunnerUUID(), req.JobToken, req.Message)
	return toBizError(err)
}

func (a *runnerDispatchAppImpl) Abort(ctx context.Context, jobUUID string, req *cqe.AbortJobReq) error {
	if jobUUID == "" {
		return errno.ErrJobUUIDRequired
	}
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return err
	}
	_, err = a.engine.Jobs.Abort(ctx, jobUUID, runner.RunnerUUID(), req.JobToken, req.Reason)
	return toBizError(err)
}

func (a *runnerDispatchAppImpl) DownloadInput(ctx context.Context, req *cqe.DownloadFileReq) (*DownloadFile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runner, err := a.authenticate(ctx, req.RunnerToken)
	if err != nil {
		return nil, err
	}
	job, err := a.engine.Jobs.Get(ctx, req.JobUUID)
	if err != nil {
		return nil, toBizError(err)
	}
	if err := job.CheckOwnership(runner.RunnerUUID(), req.JobToken); err != nil {
		return nil, toBizError(err)
	}
	if job.VideoUUID() != req.VideoUUID {
		return nil, errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("job %s does not belong to video %s", req.JobUUID, req.VideoUUID))
	}

	video, err := a.engine.Videos.GetByUUID(ctx, req.VideoUUID)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if video == nil {
		return nil, errno.ErrVideoNotFound
	}
	filename := video.InputFilename()
	if req.Preview {
		filename = video.PreviewFile()
	}
	if filename == "" {
		return nil, errno.NewBizError(errno.ErrNotFound, fmt.Errorf("video %s has no such file", req.VideoUUID))
	}

	r, info, err := a.engine.Store.Open(a.engine.Store.InputPath(req.VideoUUID, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errno.NewBizError(errno.ErrNotFound, err)
		}
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	return &DownloadFile{Name: filepath.Base(filename), Size: info.Size(), Reader: r}, nil
}
