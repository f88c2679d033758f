// Package events 提供领域事件构造与元数据辅助函数，统一事件命名与属性。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// 事件总线上的具名投递目标。preview-requested 与 media-processed 为可选配置，
// 未配置时发布步骤整体跳过。
const (
	DestinationMediaUploaded    = "media-uploaded"
	DestinationPreviewRequested = "preview-requested"
	DestinationMediaProcessed   = "media-processed"
	DestinationAudit            = "audit"
)

const (
	// AggregateTypeUpload 标识上传聚合类型，供消息 attributes 使用。
	AggregateTypeUpload = "upload"
	// SchemaVersionV1 描述事件载荷的当前 schema 版本。
	SchemaVersionV1 = "v1"
)

var (
	// ErrNilSession 在构建事件时会话实体为空。
	ErrNilSession = errors.New("event builder: session is nil")
	// ErrInvalidEventID 表示未提供合法的事件 ID。
	ErrInvalidEventID = errors.New("event builder: event id is required")
)

// Envelope 聚合一次事件发布所需的标识、载荷与时间信息。
type Envelope struct {
	EventID     uuid.UUID
	EventType   string
	AggregateID string
	OccurredAt  time.Time
	Payload     any
}

// MarshalPayload 将载荷编码为 JSON。
func (e Envelope) MarshalPayload() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// Attributes 构造符合 Pub/Sub 约定的 message attributes。
func (e Envelope) Attributes(traceID string) map[string]string {
	attrs := map[string]string{
		"event_id":       e.EventID.String(),
		"event_type":     e.EventType,
		"aggregate_id":   e.AggregateID,
		"aggregate_type": AggregateTypeUpload,
		"occurred_at":    e.OccurredAt.UTC().Format(time.RFC3339),
		"schema_version": SchemaVersionV1,
	}
	if traceID != "" {
		attrs["trace_id"] = traceID
	}
	return attrs
}

// TraceIDFromContext 提取 OTel Trace ID，若不存在返回空字符串。
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() || !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}
