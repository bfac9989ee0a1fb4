package jobhandler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// ErrMissingResultFile runner 成功上报但没有携带结果文件
var ErrMissingResultFile = errors.New("result payload has no file")

// Dependencies handler 共享的依赖
type Dependencies struct {
	Creator     service.JobCreator
	Videos      repo.VideoRepository
	Store       gateway.MediaFileStore
	Probe       gateway.MediaProbe
	Publication service.PublicationService
	// PublicURL runner 下载输入文件使用的地址前缀
	PublicURL string

	LiveSegmentDuration int
	LiveSegmentListSize int
}

// RegisterAll 注册全部类型的 handler，返回需要延迟注入 planner 的剪辑 handler
func RegisterAll(registry *service.HandlerRegistry, deps Dependencies) *StudioEditHandler {
	registry.Register(NewWebVideoHandler(deps))
	registry.Register(NewHLSHandler(deps))
	registry.Register(NewAudioMergeHandler(deps))
	registry.Register(NewLiveHandler(deps))
	studio := NewStudioEditHandler(deps)
	registry.Register(studio)
	return studio
}

type baseHandler struct {
	deps Dependencies
}

func (b *baseHandler) OnUpdate(ctx context.Context, job *entity.RunnerJob) error {
	return nil
}

func (b *baseHandler) OnError(ctx context.Context, job *entity.RunnerJob, message string, fromParent bool) error {
	return b.cleanupStaging(job)
}

func (b *baseHandler) OnCancel(ctx context.Context, job *entity.RunnerJob, fromParent bool) error {
	return b.cleanupStaging(job)
}

func (b *baseHandler) OnAbort(ctx context.Context, job *entity.RunnerJob) error {
	return b.cleanupStaging(job)
}

// cleanupStaging 删除暂存目录，目录不存在不报错
func (b *baseHandler) cleanupStaging(job *entity.RunnerJob) error {
	dir := b.deps.Store.StagingDir(job.JobUUID())
	if err := b.deps.Store.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove staging dir %s: %w", dir, err)
	}
	return nil
}

// newJob 构造 job、写入 payload 并持久化
func (b *baseHandler) newJob(ctx context.Context, jobType vo.JobType, counter vo.JobInfoCounter, params service.CreateJobParams,
	buildPayload func(jobUUID string) (interface{}, error), private vo.JobPrivatePayload) (*entity.RunnerJob, error) {
	if params.Video == nil {
		return nil, entity.NewValidationError("", "video is required")
	}
	dependsOn := ""
	if params.DependsOn != nil {
		dependsOn = params.DependsOn.JobUUID()
	}
	job, err := entity.NewRunnerJob(jobType, params.Video.VideoUUID(), params.Priority, nil, nil, dependsOn)
	if err != nil {
		return nil, err
	}

	payload, err := buildPayload(job.JobUUID())
	if err != nil {
		return nil, err
	}
	rawPayload, err := vo.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	private.VideoUUID = params.Video.VideoUUID()
	rawPrivate, err := vo.EncodePayload(private)
	if err != nil {
		return nil, err
	}
	job.AttachPayload(rawPayload, rawPrivate)

	if err := b.deps.Creator.CreateJob(ctx, job, counter); err != nil {
		return nil, err
	}
	return job, nil
}

func (b *baseHandler) inputVideoURL(jobUUID, videoUUID string) string {
	return fmt.Sprintf("%s/api/v1/jobs/%s/files/videos/%s/max-quality", b.deps.PublicURL, jobUUID, videoUUID)
}

func (b *baseHandler) previewURL(jobUUID, videoUUID string) string {
	return fmt.Sprintf("%s/api/v1/jobs/%s/files/videos/%s/previews/max-quality", b.deps.PublicURL, jobUUID, videoUUID)
}

// stagedPath runner 上传文件在暂存目录中的路径，只取文件名部分
func (b *baseHandler) stagedPath(job *entity.RunnerJob, name string) (string, error) {
	if name == "" {
		return "", ErrMissingResultFile
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("invalid result file name %q", name)
	}
	return b.deps.Store.StagingPath(job.JobUUID(), base), nil
}

// storeWebVideo 把 runner 产出的 mp4 移动到最终路径并记录文件，主任务额外回写时长
func (b *baseHandler) storeWebVideo(ctx context.Context, job *entity.RunnerJob, result vo.JobResultPayload) error {
	private, err := job.DecodePrivatePayload()
	if err != nil {
		return err
	}
	src, err := b.stagedPath(job, result.VideoFile)
	if err != nil {
		return err
	}
	dst := b.deps.Store.WebVideoPath(private.VideoUUID, private.Resolution)
	if err := b.deps.Store.Move(src, dst); err != nil {
		return fmt.Errorf("move web video: %w", err)
	}
	size, err := b.deps.Store.Size(dst)
	if err != nil {
		return err
	}

	file := vo.VideoFile{
		Kind:       vo.VideoFileKindWebVideo,
		Resolution: private.Resolution,
		FPS:        private.FPS,
		Filename:   filepath.Base(dst),
		Size:       size,
	}
	if err := b.deps.Videos.UpsertFile(ctx, private.VideoUUID, file); err != nil {
		return err
	}

	if private.IsMainJob {
		if err := b.writeBackDuration(ctx, private.VideoUUID, dst); err != nil {
			return err
		}
	}
	return b.cleanupStaging(job)
}

func (b *baseHandler) writeBackDuration(ctx context.Context, videoUUID, path string) error {
	if b.deps.Probe == nil {
		return nil
	}
	meta, err := b.deps.Probe.Probe(ctx, b.deps.Store.LocalPath(path))
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	if meta.Duration <= 0 {
		logger.Warnf("probe returned no duration video_uuid=%s path=%s", videoUUID, path)
		return nil
	}
	return b.deps.Videos.UpdateDuration(ctx, videoUUID, meta.Duration)
}
