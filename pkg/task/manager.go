package task

import (
	"context"
	"sync"

	"transcode-orchestrator/pkg/logger"
)

// BackgroundTask is a long-running process started with the service (sweepers, consumers).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks   []BackgroundTask
	started []BackgroundTask
	mu      sync.Mutex
	cancel  context.CancelFunc
}

var defaultManager = &manager{}

// Register adds a task; call it before StartAll.
func Register(t BackgroundTask) {
	if t == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, t)
}

// StartAll starts registered tasks once. Tasks started before a failure are stopped again.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defaultManager.cancel = cancel
	for _, t := range defaultManager.tasks {
		if err := t.Start(runCtx); err != nil {
			logger.Errorf("background task start failed name=%s error=%v", t.Name(), err)
			defaultManager.stopLocked()
			return err
		}
		defaultManager.started = append(defaultManager.started, t)
		logger.Infof("background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops running tasks in reverse order.
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.stopLocked()
}

func (m *manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(); err != nil {
			logger.Warnf("background task stop failed name=%s error=%v", m.started[i].Name(), err)
		}
	}
	m.started = nil
	m.cancel = nil
}
