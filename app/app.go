package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	grpcadapter "transcode-orchestrator/ddd/adapter/grpc"
	appsvc "transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/internal/resource"
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/manager"
	"transcode-orchestrator/pkg/middleware"
	"transcode-orchestrator/pkg/observability"
	"transcode-orchestrator/pkg/registry"
	"transcode-orchestrator/pkg/task"

	_ "transcode-orchestrator/ddd/adapter/component"
	_ "transcode-orchestrator/ddd/adapter/http"
)

const serviceName = "transcode-orchestrator"

// MustBootstrap 加载配置、初始化日志并打开资源，返回的 cleanup 需在退出时调用
func MustBootstrap() (*config.Config, func()) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
		"config": cfgPath,
	})

	observability.StartProfiling(serviceName, cfg.Pyroscope.ServerAddress, cfg.Pyroscope.AuthToken)

	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()

	engine, err := BuildEngine(cfg, resource.DefaultMySqlResource().DB())
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to assemble engine error=%v", err))
	}
	appsvc.SetDefaultEngine(engine)

	return cfg, func() {
		task.StopAll()
		manager.CloseResources()
		observability.StopProfiling()
		logService.Close()
	}
}

func Run() {
	cfg, cleanup := MustBootstrap()
	defer cleanup()

	logger.Infof("Transcode orchestrator starting port=%d", cfg.Server.Port)

	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	deps := &manager.Dependencies{
		DB:     resource.DefaultMySqlResource().DB(),
		Config: cfg,
	}
	manager.MustInitComponents(deps)

	var grpcServer *grpcadapter.HealthServer
	if cfg.GRPCServer.Enabled {
		grpcServer = grpcadapter.NewHealthServer(cfg.GRPCServer.Host, cfg.GRPCServer.Port, 0, healthPingers())
		if err := grpcServer.Start(); err != nil {
			logger.Fatal(fmt.Sprintf("Failed to start gRPC server error=%v", err))
		}
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestContextMiddleware(), middleware.AccessLogMiddleware())
	manager.RegisterAllRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// 长轮询请求最多挂起 max_request_wait
		WriteTimeout: writeTimeout(cfg),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started address=%s health_url=%s", addr, cfg.Dispatch.PublicURL+"/health")

	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		host := cfg.ServiceRegistry.RegisterHost
		if host == "" {
			host = cfg.Server.Host
		}
		r, err := registry.NewServiceRegistry(cfg.Etcd, cfg.ServiceRegistry, fmt.Sprintf("%s:%d", host, cfg.Server.Port))
		if err != nil {
			logger.Errorf("Service registry unavailable error=%v", err)
		} else if err := r.Register(); err != nil {
			logger.Errorf("Service registration failed error=%v", err)
		} else {
			reg = r
		}
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down server...")

	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warnf("Service deregistration failed error=%v", err)
		}
	}
	if grpcServer != nil {
		_ = grpcServer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to close error=%v", err)
	}

	manager.Shutdown()
	logger.Infof("Server exited safely")
}

func writeTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.WriteTimeout <= 0 {
		return 0
	}
	if floor := cfg.Dispatch.MaxRequestWait + 10*time.Second; cfg.Server.WriteTimeout < floor {
		return floor
	}
	return cfg.Server.WriteTimeout
}

func healthPingers() map[string]grpcadapter.Pinger {
	pingers := map[string]grpcadapter.Pinger{}
	if sqlDB, err := resource.DefaultMySqlResource().DB().DB(); err == nil {
		pingers["mysql"] = sqlDB.PingContext
	}
	if redisRes := resource.DefaultRedisResource(); redisRes.Enabled() {
		pingers["redis"] = func(ctx context.Context) error {
			return redisRes.Client().Ping(ctx).Err()
		}
	}
	if minioRes := resource.DefaultMinioResource(); minioRes.Enabled() {
		pingers["minio"] = minioRes.Ping
	}
	return pingers
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
