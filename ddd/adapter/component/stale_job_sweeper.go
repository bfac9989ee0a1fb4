package component

import (
	"context"
	"time"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/pkg/manager"
	"transcode-orchestrator/pkg/task"
)

func init() {
	manager.RegisterComponentPlugin(&StaleJobSweeperPlugin{})
}

// StaleJobSweeperPlugin 定期回收失联 runner 的处理中 job
type StaleJobSweeperPlugin struct{}

func (p *StaleJobSweeperPlugin) Name() string { return "staleJobSweeper" }

func (p *StaleJobSweeperPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil || !deps.Config.Scheduler.Enabled {
		return nil
	}
	return NewStaleJobSweeper(app.DefaultMaintenanceApp(), deps.Config.Scheduler.CleanupInterval)
}

// StaleJobSweeper 把 PeriodicTask 适配为组件
type StaleJobSweeper struct {
	periodic *task.PeriodicTask
}

// NewStaleJobSweeper 创建回收组件
func NewStaleJobSweeper(maintenance app.MaintenanceApp, interval time.Duration) *StaleJobSweeper {
	return &StaleJobSweeper{
		periodic: task.NewPeriodicTask("staleJobSweeper", interval, func(ctx context.Context) error {
			_, err := maintenance.SweepStaleJobs(ctx)
			return err
		}),
	}
}

func (s *StaleJobSweeper) Start() error { return s.periodic.Start(context.Background()) }

func (s *StaleJobSweeper) Stop() error { return s.periodic.Stop() }

func (s *StaleJobSweeper) GetName() string { return s.periodic.Name() }
