package services

import (
	"context"
	"sync"

	"github.com/pocketlol/services-upload/internal/models/events"

	"github.com/go-kratos/kratos/v2/log"
)

// AuditSink 定义审计事件的 fire-and-forget 入口。
// Record 绝不阻塞调用方，投递失败也不会反馈给主操作。
type AuditSink interface {
	Record(event events.AuditEvent)
}

// AuditPublisher 抽象审计事件的实际投递端（事件总线的 audit 目标）。
type AuditPublisher interface {
	Configured(destination string) bool
	Publish(ctx context.Context, destination string, data []byte, attrs map[string]string) (string, error)
}

const defaultAuditBuffer = 256

// AuditDispatcher 以缓冲通道 + 后台 worker 实现异步审计管道：
// 入队永不阻塞，缓冲满时丢弃并告警；worker 将事件发布到 audit 目标，
// 未配置该目标时退化为仅记录日志。
type AuditDispatcher struct {
	publisher AuditPublisher
	ch        chan events.AuditEvent
	log       *log.Helper

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewAuditDispatcher 构造 AuditDispatcher。
func NewAuditDispatcher(publisher AuditPublisher, logger log.Logger) *AuditDispatcher {
	return &AuditDispatcher{
		publisher: publisher,
		ch:        make(chan events.AuditEvent, defaultAuditBuffer),
		log:       log.NewHelper(logger),
	}
}

// Record 非阻塞入队一条审计事件。缓冲已满时事件被丢弃并记录告警。
func (d *AuditDispatcher) Record(event events.AuditEvent) {
	if d == nil {
		return
	}
	select {
	case d.ch <- event:
	default:
		d.log.Warnf("audit buffer full, dropping event: type=%s upload_id=%s", event.Type, event.UploadID)
	}
}

// Start 启动后台投递 worker，实现 Kratos transport.Server 契约以纳入应用生命周期。
func (d *AuditDispatcher) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.started = true
	go d.run(runCtx)
	return nil
}

// Stop 终止 worker 并等待其退出，未投递的缓冲事件被放弃。
func (d *AuditDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.cancel()
	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.started = false
	return nil
}

func (d *AuditDispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.ch:
			d.deliver(ctx, event)
		}
	}
}

func (d *AuditDispatcher) deliver(ctx context.Context, event events.AuditEvent) {
	if d.publisher == nil || !d.publisher.Configured(events.DestinationAudit) {
		d.log.Infof("audit: type=%s upload_id=%s admin_id=%s", event.Type, event.UploadID, event.AdminID)
		return
	}
	payload, err := event.MarshalPayload()
	if err != nil {
		d.log.Errorf("marshal audit event failed: type=%s upload_id=%s err=%v", event.Type, event.UploadID, err)
		return
	}
	if _, err := d.publisher.Publish(ctx, events.DestinationAudit, payload, event.Attributes()); err != nil {
		d.log.Errorf("publish audit event failed: type=%s upload_id=%s err=%v", event.Type, event.UploadID, err)
	}
}
