package service

import (
	"context"
	"errors"
	"fmt"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/pkg/logger"
)

// ErrProbeFailed 源文件探测失败
var ErrProbeFailed = errors.New("probe input failed")

// audioMergeFps 静态图片合成音频的输出帧率
const audioMergeFps = 25

// BuildOptions 生成任务图的可选参数
type BuildOptions struct {
	// Priority 主任务优先级，0 使用配置的基础优先级
	Priority int
}

// LiveInput 直播输入流参数
type LiveInput struct {
	Resolution int
	FPS        float64
}

// TranscodePlanner 为视频生成转码任务图
type TranscodePlanner interface {
	BuildForVideo(ctx context.Context, videoUUID string, opts BuildOptions) ([]*entity.RunnerJob, error)
}

// GraphBuilder 任务图构建
type GraphBuilder interface {
	TranscodePlanner
	PlanStudioEdit(ctx context.Context, videoUUID string, tasks []vo.StudioTask) (*entity.RunnerJob, error)
	PlanLive(ctx context.Context, videoUUID, rtmpURL string, input LiveInput) (*entity.RunnerJob, error)
}

// GraphBuilderOptions 任务图配置
type GraphBuilderOptions struct {
	WebVideosEnabled        bool
	HLSEnabled              bool
	AudioMergeResolution    int
	BasePriority            int
	KeepLiveInputResolution bool
}

type graphBuilderImpl struct {
	videoRepo   repo.VideoRepository
	probe       gateway.MediaProbe
	store       gateway.MediaFileStore
	ladder      *Ladder
	handlers    *HandlerRegistry
	publication PublicationService
	opts        GraphBuilderOptions
}

// NewGraphBuilder 创建任务图构建器
func NewGraphBuilder(videoRepo repo.VideoRepository, probe gateway.MediaProbe, store gateway.MediaFileStore, ladder *Ladder,
	handlers *HandlerRegistry, publication PublicationService, opts GraphBuilderOptions) GraphBuilder {
	if opts.AudioMergeResolution <= 0 {
		opts.AudioMergeResolution = 480
	}
	if !opts.WebVideosEnabled && !opts.HLSEnabled {
		opts.HLSEnabled = true
	}
	return &graphBuilderImpl{
		videoRepo:   videoRepo,
		probe:       probe,
		store:       store,
		ladder:      ladder,
		handlers:    handlers,
		publication: publication,
		opts:        opts,
	}
}

// plannedJob 尚未落库的 job
type plannedJob struct {
	jobType vo.JobType
	params  CreateJobParams
}

func (b *graphBuilderImpl) loadVideo(ctx context.Context, videoUUID string) (*entity.Video, error) {
	video, err := b.videoRepo.GetByUUID(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, entity.ErrVideoNotFound
	}
	return video, nil
}

func (b *graphBuilderImpl) BuildForVideo(ctx context.Context, videoUUID string, opts BuildOptions) ([]*entity.RunnerJob, error) {
	video, err := b.loadVideo(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	if video.State() != vo.VideoStateToTranscode && !video.State().IsAlternateEntry() {
		return nil, fmt.Errorf("%w: video %s is %s", entity.ErrInvalidVideoState, videoUUID, video.State())
	}

	inputPath := b.store.LocalPath(b.store.InputPath(videoUUID, video.InputFilename()))
	meta, err := b.probe.Probe(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProbeFailed, inputPath, err)
	}

	priority := opts.Priority
	if priority <= 0 {
		priority = b.opts.BasePriority
	}
	main, children, err := b.plan(video, meta, priority)
	if err != nil {
		return nil, err
	}

	if err := b.publication.PrepareForTranscoding(ctx, videoUUID); err != nil {
		return nil, err
	}

	mainJob, err := b.create(ctx, main)
	if err != nil {
		return nil, err
	}
	jobs := []*entity.RunnerJob{mainJob}
	for _, child := range children {
		child.params.DependsOn = mainJob
		job, err := b.create(ctx, child)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}

	logger.Info("transcoding plan created", map[string]interface{}{
		"video_uuid":      videoUUID,
		"main_job":        mainJob.JobUUID(),
		"main_type":       mainJob.Type().String(),
		"main_resolution": main.params.Resolution,
		"jobs":            len(jobs),
	})
	return jobs, nil
}

// plan 计算主任务与子任务，帧率非法时不创建任何 job
func (b *graphBuilderImpl) plan(video *entity.Video, meta *vo.StreamMetadata, priority int) (plannedJob, []plannedJob, error) {
	var (
		main          plannedJob
		children      []plannedJob
		inputRes      int
		mainWebOutput bool
	)

	if !meta.HasVideo && !meta.HasAudio {
		return main, nil, entity.NewValidationError("", "input has neither video nor audio stream")
	}

	if !meta.HasVideo {
		inputRes = b.opts.AudioMergeResolution
		main = plannedJob{
			jobType: vo.JobTypeAudioMergeTranscoding,
			params: CreateJobParams{
				Video: video, Priority: priority, Resolution: inputRes, FPS: audioMergeFps, IsMainJob: true,
			},
		}
		mainWebOutput = true
	} else {
		inputRes = meta.Resolution()
		mainRes := b.ladder.MainResolution(inputRes)
		fps, err := ComputeOutputFps(meta.FPS, mainRes)
		if err != nil {
			return main, nil, entity.WrapValidationError(err)
		}
		mainType := vo.JobTypeHLSTranscoding
		if b.opts.WebVideosEnabled {
			mainType = vo.JobTypeWebVideoTranscoding
			mainWebOutput = true
		}
		main = plannedJob{
			jobType: mainType,
			params: CreateJobParams{
				Video: video, Priority: priority, Resolution: mainRes, FPS: fps, IsMainJob: true,
			},
		}
	}

	if mainWebOutput && b.opts.HLSEnabled {
		children = append(children, plannedJob{
			jobType: vo.JobTypeHLSTranscoding,
			params: CreateJobParams{
				Video: video, Priority: priority + 1, Resolution: main.params.Resolution, FPS: main.params.FPS,
			},
		})
	}

	for _, res := range b.ladder.ComputeResolutions(inputRes, vo.TranscodeKindVOD, false, true, meta.HasAudio) {
		if res == main.params.Resolution {
			continue
		}
		if res == AudioOnlyResolution {
			if b.opts.HLSEnabled {
				children = append(children, plannedJob{
					jobType: vo.JobTypeHLSTranscoding,
					params:  CreateJobParams{Video: video, Priority: priority + 1, Resolution: res, AudioOnly: true},
				})
			}
			continue
		}

		fps := main.params.FPS
		if meta.HasVideo {
			var err error
			if fps, err = ComputeOutputFps(meta.FPS, res); err != nil {
				return main, nil, entity.WrapValidationError(err)
			}
		}
		if b.opts.WebVideosEnabled {
			children = append(children, plannedJob{
				jobType: vo.JobTypeWebVideoTranscoding,
				params:  CreateJobParams{Video: video, Priority: priority + 1, Resolution: res, FPS: fps},
			})
		}
		if b.opts.HLSEnabled {
			children = append(children, plannedJob{
				jobType: vo.JobTypeHLSTranscoding,
				params:  CreateJobParams{Video: video, Priority: priority + 1, Resolution: res, FPS: fps},
			})
		}
	}
	return main, children, nil
}

func (b *graphBuilderImpl) create(ctx context.Context, p plannedJob) (*entity.RunnerJob, error) {
	h, err := b.handlers.Get(p.jobType)
	if err != nil {
		return nil, err
	}
	return h.Create(ctx, p.params)
}

func (b *graphBuilderImpl) PlanStudioEdit(ctx context.Context, videoUUID string, tasks []vo.StudioTask) (*entity.RunnerJob, error) {
	if len(tasks) == 0 {
		return nil, entity.NewValidationError("", "studio edit needs at least one task")
	}
	video, err := b.loadVideo(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	if video.State() != vo.VideoStateToEdit {
		return nil, fmt.Errorf("%w: video %s is %s", entity.ErrInvalidVideoState, videoUUID, video.State())
	}
	return b.create(ctx, plannedJob{
		jobType: vo.JobTypeStudioEditTranscoding,
		params:  CreateJobParams{Video: video, Priority: b.opts.BasePriority, StudioTasks: tasks},
	})
}

func (b *graphBuilderImpl) PlanLive(ctx context.Context, videoUUID, rtmpURL string, input LiveInput) (*entity.RunnerJob, error) {
	if rtmpURL == "" {
		return nil, entity.NewValidationError("", "rtmp url is required")
	}
	video, err := b.loadVideo(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	if video.State() != vo.VideoStateWaitingForLive {
		return nil, fmt.Errorf("%w: video %s is %s", entity.ErrInvalidVideoState, videoUUID, video.State())
	}

	resolutions := b.ladder.ComputeResolutions(input.Resolution, vo.TranscodeKindLive, b.opts.KeepLiveInputResolution, false, false)
	if len(resolutions) == 0 {
		resolutions = []int{RoundToEven(input.Resolution)}
	}
	outputs := make([]vo.TranscodeOutput, 0, len(resolutions))
	for _, res := range resolutions {
		fps, err := ComputeOutputFps(input.FPS, res)
		if err != nil {
			return nil, entity.WrapValidationError(err)
		}
		outputs = append(outputs, vo.TranscodeOutput{Resolution: res, FPS: fps})
	}

	return b.create(ctx, plannedJob{
		jobType: vo.JobTypeLiveTranscoding,
		params:  CreateJobParams{Video: video, Priority: b.opts.BasePriority, RTMPURL: rtmpURL, Outputs: outputs},
	})
}
