package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"transcode-orchestrator/app"
	"transcode-orchestrator/ddd/adapter/component"
	appsvc "transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/task"
)

// 独立运行失联 job 回收，适合在 API 实例之外以 cron 或常驻进程部署
func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, cleanup := app.MustBootstrap()
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := task.StartAll(ctx); err != nil {
		logger.Errorf("start background tasks failed error=%v", err)
		os.Exit(1)
	}

	maintenance := appsvc.DefaultMaintenanceApp()
	if *once {
		swept, err := maintenance.SweepStaleJobs(ctx)
		if err != nil {
			logger.Errorf("stale job sweep failed error=%v", err)
			os.Exit(1)
		}
		logger.Infof("stale job sweep finished swept=%d", swept)
		return
	}

	sweeper := component.NewStaleJobSweeper(maintenance, cfg.Scheduler.CleanupInterval)
	if err := sweeper.Start(); err != nil {
		logger.Errorf("start sweeper failed error=%v", err)
		os.Exit(1)
	}
	logger.Infof("stale job sweeper running interval=%s timeout=%s", cfg.Scheduler.CleanupInterval, cfg.Scheduler.JobStaleTimeout)
	<-ctx.Done()
	_ = sweeper.Stop()
}
