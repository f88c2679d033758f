// Package expiry 提供过期上传会话的周期清扫任务。
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Sweeper 抽象清扫入口，由 services.UploadManager 实现。
type Sweeper interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Runner 周期性地将超过签发有效期的会话标记为过期并归还配额。
// 实现 Kratos transport.Server 契约，随应用生命周期启停。
type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	log      *log.Helper

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// RunnerParams 注入构建 Runner 所需的依赖。
type RunnerParams struct {
	Sweeper  Sweeper
	Interval time.Duration
	Logger   log.Logger
}

// NewRunner 构造过期清扫 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Sweeper == nil {
		return nil, fmt.Errorf("expiry: sweeper is required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("expiry: sweep interval must be positive")
	}
	return &Runner{
		sweeper:  params.Sweeper,
		interval: params.Interval,
		log:      log.NewHelper(params.Logger),
		now:      time.Now,
	}, nil
}

// Start 启动清扫循环。
func (r *Runner) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(runCtx)
	return nil
}

// Stop 终止清扫循环并等待退出。
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 以阻塞方式执行清扫循环，供独立进程入口使用。
func (r *Runner) Run(ctx context.Context) error {
	r.loopOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.loopOnce(ctx)
		}
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.loopOnce(ctx)
		}
	}
}

func (r *Runner) loopOnce(ctx context.Context) {
	count, err := r.sweeper.ExpireStale(ctx, r.now())
	if err != nil {
		r.log.WithContext(ctx).Errorf("expiry sweep failed: err=%v", err)
		return
	}
	if count > 0 {
		r.log.WithContext(ctx).Infof("expiry sweep completed: expired=%d", count)
	}
}
