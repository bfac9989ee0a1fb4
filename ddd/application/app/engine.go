package app

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/service/jobhandler"
	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/config"
)

var (
	engineMu      sync.RWMutex
	defaultEngine *Engine
)

// Engine 组装好的领域服务，应用层各 App 共享
type Engine struct {
	Jobs        service.RunnerJobService
	Runners     service.RunnerService
	Graph       service.GraphBuilder
	Publication service.PublicationService
	StorageMove service.StorageMoveService
	Videos      repo.VideoRepository
	JobInfos    repo.JobInfoRepository
	Store       gateway.MediaFileStore
	Notifier    gateway.JobNotifier

	AvailableJobsLimit int
	MaxRequestWait     time.Duration
	StaleTimeout       time.Duration
	SweepBatchSize     int
}

// EngineDeps 组装引擎需要的基础设施
type EngineDeps struct {
	DB     *gorm.DB
	Config *config.Config

	Store    gateway.MediaFileStore
	Probe    gateway.MediaProbe
	Issuer   gateway.RunnerTokenIssuer
	Notifier gateway.JobNotifier
	Throttle gateway.ContactThrottle
	Events   gateway.AssetEventPublisher
	// MoveQueue 与 External 仅在启用外部存储时设置
	MoveQueue gateway.StorageMoveQueue
	External  gateway.ExternalStorage
}

// NewEngine 按依赖顺序组装仓储、handler 与领域服务
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.DB == nil || deps.Config == nil {
		return nil, errors.New("engine needs a database and a config")
	}
	if deps.Store == nil || deps.Issuer == nil || deps.Probe == nil {
		return nil, errors.New("engine needs a file store, a media probe and a token issuer")
	}
	cfg := deps.Config

	jobRepo := persistence.NewRunnerJobRepository(deps.DB)
	runnerRepo := persistence.NewCachedRunnerRepository(persistence.NewRunnerRepository(deps.DB),
		cfg.Dispatch.RunnerCacheSize, cfg.Dispatch.RunnerCacheTTL)
	videoRepo := persistence.NewVideoRepository(deps.DB)
	jobInfoRepo := persistence.NewJobInfoRepository(deps.DB)

	storageEnabled := cfg.ObjectStorage.Enabled && deps.MoveQueue != nil && deps.External != nil
	var moveQueue gateway.StorageMoveQueue
	if storageEnabled {
		moveQueue = deps.MoveQueue
	}
	publication := service.NewPublicationService(videoRepo, jobInfoRepo, moveQueue, deps.Events, storageEnabled)

	registry := service.NewHandlerRegistry()
	jobs := service.NewRunnerJobService(jobRepo, jobInfoRepo, registry, publication, deps.Notifier,
		service.RunnerJobServiceOptions{MaxFailures: cfg.Scheduler.MaxFailures})

	studio := jobhandler.RegisterAll(registry, jobhandler.Dependencies{
		Creator:             jobs,
		Videos:              videoRepo,
		Store:               deps.Store,
		Probe:               deps.Probe,
		Publication:         publication,
		PublicURL:           cfg.Dispatch.PublicURL,
		LiveSegmentDuration: cfg.Live.SegmentDuration,
		LiveSegmentListSize: cfg.Live.SegmentListSize,
	})

	ladder := service.NewLadder(config.EnabledResolutions(cfg.Transcode.Resolutions), config.EnabledResolutions(cfg.Live.Resolutions))
	graph := service.NewGraphBuilder(videoRepo, deps.Probe, deps.Store, ladder, registry, publication, service.GraphBuilderOptions{
		WebVideosEnabled:        cfg.Transcode.WebVideosEnabled,
		HLSEnabled:              cfg.Transcode.HLSEnabled,
		AudioMergeResolution:    cfg.Transcode.AudioMergeResolution,
		BasePriority:            cfg.Transcode.BasePriority,
		KeepLiveInputResolution: cfg.Live.KeepInputResolution,
	})
	studio.SetPlanner(graph)

	engine := &Engine{
		Jobs:               jobs,
		Runners:            service.NewRunnerService(runnerRepo, jobs, deps.Issuer, deps.Throttle),
		Graph:              graph,
		Publication:        publication,
		Videos:             videoRepo,
		JobInfos:           jobInfoRepo,
		Store:              deps.Store,
		Notifier:           deps.Notifier,
		AvailableJobsLimit: cfg.Dispatch.AvailableJobsLimit,
		MaxRequestWait:     cfg.Dispatch.MaxRequestWait,
		StaleTimeout:       cfg.Scheduler.JobStaleTimeout,
		SweepBatchSize:     cfg.Scheduler.SweepBatchSize,
	}
	if storageEnabled {
		engine.StorageMove = service.NewStorageMoveService(videoRepo, jobInfoRepo, deps.Store, deps.External, publication,
			service.StorageMoveOptions{KeyPrefix: cfg.ObjectStorage.KeyPrefix, Concurrency: cfg.ObjectStorage.UploadConcurrency})
	}
	return engine, nil
}

// SetDefaultEngine 启动时设置全局引擎
func SetDefaultEngine(e *Engine) {
	engineMu.Lock()
	defer engineMu.Unlock()
	defaultEngine = e
}

// DefaultEngine 获取全局引擎，未初始化时 panic
func DefaultEngine() *Engine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	assert.NotNil(defaultEngine)
	return defaultEngine
}
