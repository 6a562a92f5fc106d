package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/pkg/logger"
)

// DrainTrigger 外发盒排空触发器：开发态入队即排空，生产态走周期 worker，
// 调用方只依赖这一个接口
type DrainTrigger interface {
	Notify()
}

// NoopTrigger 仅靠管理端点手动排空
type NoopTrigger struct{}

func (NoopTrigger) Notify() {}

// SyncTrigger 入队后立即异步排空（开发/测试便利），不阻塞原请求
type SyncTrigger struct {
	Drainer *Drainer
	Limit   int
}

func (t *SyncTrigger) Notify() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := t.Drainer.Drain(ctx, t.Limit); err != nil {
			logger.Error("sync drain failed", zap.Error(err))
		}
	}()
}

// WorkerTrigger 周期轮询排空；Notify 唤醒一次提前排空
type WorkerTrigger struct {
	drainer  *Drainer
	interval time.Duration
	limit    int
	wake     chan struct{}
}

func NewWorkerTrigger(drainer *Drainer, interval time.Duration, limit int) *WorkerTrigger {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if limit <= 0 {
		limit = 100
	}
	return &WorkerTrigger{drainer: drainer, interval: interval, limit: limit, wake: make(chan struct{}, 1)}
}

func (t *WorkerTrigger) Notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Start 启动轮询循环；返回停止函数
func (t *WorkerTrigger) Start() func(context.Context) error {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			case <-t.wake:
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := t.drainer.Drain(ctx, t.limit); err != nil {
				logger.Error("outbox drain failed", zap.Error(err))
			}
			cancel()
		}
	}()
	return func(ctx context.Context) error { close(stop); return nil }
}
