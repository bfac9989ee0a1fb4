package app

import (
	"fmt"

	"github.com/spf13/afero"
	"gorm.io/gorm"

	appsvc "transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/infrastructure/auth"
	"transcode-orchestrator/ddd/infrastructure/event"
	"transcode-orchestrator/ddd/infrastructure/executor"
	"transcode-orchestrator/ddd/infrastructure/queue"
	"transcode-orchestrator/ddd/infrastructure/storage"
	"transcode-orchestrator/internal/resource"
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/kafka"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/task"
)

// BuildEngine 根据已打开的资源选择网关实现并组装引擎。
// 需要随进程启停的实现注册为后台任务，由调用方 task.StartAll 启动。
func BuildEngine(cfg *config.Config, db *gorm.DB) (*appsvc.Engine, error) {
	issuer, err := auth.NewJWTTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("runner token issuer: %w", err)
	}

	deps := appsvc.EngineDeps{
		DB:     db,
		Config: cfg,
		Store: storage.NewLocalFileStore(afero.NewOsFs(),
			cfg.Transcode.StorageRoot, cfg.Transcode.InputDir, cfg.Transcode.StagingDir),
		Probe:  executor.NewFFprobeExecutor(cfg.Transcode.FFprobePath, cfg.Transcode.ProbeTimeout),
		Issuer: issuer,
	}

	redisRes := resource.DefaultRedisResource()
	if redisRes.Enabled() {
		notifier := queue.NewRedisNotifier(redisRes.Client(), cfg.Dispatch.NotifyChannel)
		task.Register(notifier)
		deps.Notifier = notifier
		deps.Throttle = queue.NewRedisContactThrottle(redisRes.Wrapped(), cfg.Dispatch.ContactThrottle)
	} else {
		deps.Notifier = queue.NewLocalNotifier()
		deps.Throttle = queue.NewLocalContactThrottle(cfg.Dispatch.RunnerCacheSize, cfg.Dispatch.ContactThrottle)
	}

	if cfg.Kafka.Enabled {
		deps.Events = event.NewKafkaAssetEventPublisher(kafka.DefaultClient(), cfg.Kafka.Topics.AssetStateChanged)
	} else {
		deps.Events = event.LogAssetEventPublisher{}
	}

	var memoryQueue *queue.MemoryStorageMoveQueue
	minioRes := resource.DefaultMinioResource()
	if cfg.ObjectStorage.Enabled && minioRes.Enabled() {
		deps.External = storage.NewMinioStorage(minioRes)
		if cfg.Kafka.Enabled {
			deps.MoveQueue = queue.NewKafkaStorageMoveQueue(kafka.DefaultClient(), cfg.Kafka.Topics.StorageMove)
		} else {
			memoryQueue = queue.NewMemoryStorageMoveQueue(0, cfg.ObjectStorage.UploadConcurrency)
			deps.MoveQueue = memoryQueue
		}
	}

	engine, err := appsvc.NewEngine(deps)
	if err != nil {
		return nil, err
	}
	if memoryQueue != nil {
		memoryQueue.Bind(engine.StorageMove.MoveVideo)
		task.Register(memoryQueue)
	}

	logger.Info("engine assembled", map[string]interface{}{
		"redis":          redisRes.Enabled(),
		"kafka":          cfg.Kafka.Enabled,
		"object_storage": deps.External != nil,
		"notifier":       fmt.Sprintf("%T", deps.Notifier),
	})
	return engine, nil
}
