package gateway

import "context"

// JobNotifier 新任务可领取通知
type JobNotifier interface {
	// NotifyJobsAvailable 广播有新的 pending job
	NotifyJobsAvailable(ctx context.Context) error
	// Subscribe 订阅通知，返回的取消函数必须调用
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
}

// ContactThrottle runner 联系时间写入节流
type ContactThrottle interface {
	// Allow 返回本次是否需要写入
	Allow(ctx context.Context, runnerUUID string) (bool, error)
}

// RunnerTokenIssuer runner token 签发与校验
type RunnerTokenIssuer interface {
	Issue(runnerUUID string) (string, error)
	// Parse 校验签名并返回 runner UUID
	Parse(token string) (string, error)
}
