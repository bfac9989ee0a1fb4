package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
)

// ServiceRegistry keeps this instance registered in etcd under a lease.
type ServiceRegistry struct {
	client  *clientv3.Client
	key     string
	addr    string
	ttl     int64
	leaseID clientv3.LeaseID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewServiceRegistry creates an etcd-backed registry for one service instance.
func NewServiceRegistry(etcdCfg config.EtcdConfig, svcCfg config.ServiceRegistryConfig, serviceAddr string) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdCfg.Endpoints,
		DialTimeout: etcdCfg.DialTimeout,
		Username:    etcdCfg.Username,
		Password:    etcdCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ttl := int64(svcCfg.TTL / time.Second)
	if ttl <= 0 {
		ttl = 30
	}
	serviceID := svcCfg.ServiceID
	if serviceID == "" {
		serviceID = serviceAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceRegistry{
		client: client,
		key:    ServiceKey(svcCfg.ServiceName, serviceID),
		addr:   serviceAddr,
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// ServiceKey is the etcd key an instance is stored under.
func ServiceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("/services/%s/%s", serviceName, serviceID)
}

// Register grants a lease, writes the instance key and keeps the lease alive.
func (r *ServiceRegistry) Register() error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(r.ctx, r.key, r.addr, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}
	go r.drainKeepAlive(ch)

	logger.Infof("Service registered key=%s addr=%s ttl=%d", r.key, r.addr, r.ttl)
	return nil
}

func (r *ServiceRegistry) drainKeepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka, ok := <-ch:
			if !ok || ka == nil {
				logger.Warnf("etcd keepalive channel closed key=%s", r.key)
				return
			}
		}
	}
}

// Deregister revokes the lease and closes the client.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease key=%s error=%v", r.key, err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered key=%s", r.key)
	return nil
}
