package task

import (
	"context"
	"sync"
	"time"

	"transcode-orchestrator/pkg/logger"
)

// PeriodicTask runs fn every interval until stopped. A run is never overlapped by the next tick.
type PeriodicTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodicTask builds a ticker-driven task.
func NewPeriodicTask(name string, interval time.Duration, fn func(ctx context.Context) error) *PeriodicTask {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicTask{name: name, interval: interval, fn: fn}
}

func (p *PeriodicTask) Name() string { return p.name }

func (p *PeriodicTask) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(runCtx, p.done)
	return nil
}

func (p *PeriodicTask) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.fn(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("periodic task run failed name=%s error=%v", p.name, err)
			}
		}
	}
}

func (p *PeriodicTask) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
