// Package eventbus 基于 GCP Pub/Sub 实现按具名目标投递的事件总线。
// 每个目标对应一个独立 topic，未在配置中出现的目标视为未配置。
package eventbus

import (
	"context"
	"fmt"

	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
)

// Bus 维护目标名到 Pub/Sub publisher 的映射。
// 配置缺失时退化为空总线：Configured 恒为 false，发布调用直接报错。
type Bus struct {
	publishers map[string]gcpubsub.Publisher
	log        *log.Helper
}

// NewBus 为每个配置的投递目标构建 Pub/Sub 组件并聚合清理函数。
// project_id 为空或目标表为空时返回空总线，不报错。
func NewBus(ctx context.Context, cfg configloader.MessagingConfig, deps gcpubsub.Dependencies, logger log.Logger) (*Bus, func(), error) {
	helper := log.NewHelper(logger)
	bus := &Bus{
		publishers: make(map[string]gcpubsub.Publisher, len(cfg.Destinations)),
		log:        helper,
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.ProjectID == "" || len(cfg.Destinations) == 0 {
		helper.Info("event bus disabled (no messaging project or destinations configured)")
		return bus, cleanup, nil
	}

	logging := cfg.LoggingEnabled
	metrics := cfg.MetricsEnabled
	for destination, topicID := range cfg.Destinations {
		if topicID == "" {
			continue
		}
		component, componentCleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
			ProjectID:        cfg.ProjectID,
			TopicID:          topicID,
			EnableLogging:    &logging,
			EnableMetrics:    &metrics,
			EmulatorEndpoint: cfg.EmulatorEndpoint,
			PublishTimeout:   cfg.PublishTimeout,
		}, deps)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init pubsub component for %q: %w", destination, err)
		}
		cleanups = append(cleanups, componentCleanup)
		bus.publishers[destination] = gcpubsub.ProvidePublisher(component)
		helper.Infof("event bus destination configured: %s -> %s", destination, topicID)
	}

	return bus, cleanup, nil
}

// Configured 返回目标是否已绑定 topic。
func (b *Bus) Configured(destination string) bool {
	if b == nil {
		return false
	}
	_, ok := b.publishers[destination]
	return ok
}

// Publish 向指定目标发布一条消息，返回消息 ID。
func (b *Bus) Publish(ctx context.Context, destination string, data []byte, attrs map[string]string) (string, error) {
	publisher, ok := b.publishers[destination]
	if !ok {
		return "", fmt.Errorf("event bus destination %q not configured", destination)
	}
	id, err := publisher.Publish(ctx, gcpubsub.Message{Data: data, Attributes: attrs})
	if err != nil {
		b.log.WithContext(ctx).Errorf("publish to %q failed: err=%v", destination, err)
		return "", fmt.Errorf("publish to %q: %w", destination, err)
	}
	return id, nil
}
