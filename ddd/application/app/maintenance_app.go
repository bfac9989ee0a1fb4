package app

import (
	"context"
	"sync"
	"time"

	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/logger"
)

var (
	singleMaintenanceApp MaintenanceApp
	onceMaintenanceApp   sync.Once
)

// staleJobMessage 失联 runner 的 job 记录的错误信息
const staleJobMessage = "runner stopped responding"

// MaintenanceApp 后台维护
type MaintenanceApp interface {
	// SweepStaleJobs 把长时间无上报的处理中 job 按失败处理，返回处理数量
	SweepStaleJobs(ctx context.Context) (int, error)
}

type maintenanceAppImpl struct {
	engine *Engine
	now    func() time.Time
}

func DefaultMaintenanceApp() MaintenanceApp {
	assert.NotCircular()
	onceMaintenanceApp.Do(func() {
		singleMaintenanceApp = NewMaintenanceApp(DefaultEngine())
	})
	assert.NotNil(singleMaintenanceApp)
	return singleMaintenanceApp
}

func NewMaintenanceApp(engine *Engine) MaintenanceApp {
	return &maintenanceAppImpl{engine: engine, now: time.Now}
}

func (a *maintenanceAppImpl) SweepStaleJobs(ctx context.Context) (int, error) {
	if a.engine.StaleTimeout <= 0 {
		return 0, nil
	}
	before := a.now().Add(-a.engine.StaleTimeout)
	jobs, err := a.engine.Jobs.ListStale(ctx, before, a.engine.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, job := range jobs {
		if _, err := a.engine.Jobs.ForceError(ctx, job.JobUUID(), staleJobMessage); err != nil {
			// runner 可能刚好上报，冲突直接跳过
			logger.Warnf("sweep stale job failed job_uuid=%s error=%v", job.JobUUID(), err)
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.Info("stale jobs swept", map[string]interface{}{
			"count":  swept,
			"before": before.Format(time.RFC3339),
		})
	}
	return swept, nil
}
