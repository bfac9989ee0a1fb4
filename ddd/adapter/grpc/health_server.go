package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"transcode-orchestrator/pkg/logger"
)

// ServiceName 健康检查中登记的服务名
const ServiceName = "transcode.orchestrator"

// Pinger 依赖探活，例如 sql.DB.PingContext
type Pinger func(ctx context.Context) error

// HealthServer 对外提供 grpc.health.v1，按依赖探活结果切换服务状态
type HealthServer struct {
	addr     string
	interval time.Duration
	pingers  map[string]Pinger

	server *grpc.Server
	health *health.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthServer 创建健康检查服务
func NewHealthServer(host string, port int, interval time.Duration, pingers map[string]Pinger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	reflection.Register(server)
	return &HealthServer{
		addr:     fmt.Sprintf("%s:%d", host, port),
		interval: interval,
		pingers:  pingers,
		server:   server,
		health:   hs,
	}
}

// Start 监听端口并开始周期探活
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", s.addr, err)
	}

	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.check(ctx)
	go s.watch(ctx)
	go func() {
		logger.Infof("gRPC server started address=%s service=%s", s.addr, ServiceName)
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check 任一依赖不可用即标记 NOT_SERVING
func (s *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, ping := range s.pingers {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := ping(pingCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warnf("dependency unhealthy name=%s error=%v", name, err)
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop 标记下线并优雅停止
func (s *HealthServer) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	s.health.Shutdown()
	if cancel != nil {
		cancel()
		<-done
	}
	s.server.GracefulStop()
	return nil
}

func (s *HealthServer) GetName() string { return "grpcHealthServer" }
