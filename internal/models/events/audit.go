package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventType 为审计事件的闭集类型。
type AuditEventType string

const (
	AuditUploadIntentCreated    AuditEventType = "upload.intent.created"
	AuditUploadValidationPassed AuditEventType = "upload.validation.passed"
	AuditUploadValidationFailed AuditEventType = "upload.validation.failed"
	AuditUploadProcessingReady  AuditEventType = "upload.processing.ready"
	AuditUploadProcessingFailed AuditEventType = "upload.processing.failed"
	AuditUploadPreviewRequested AuditEventType = "upload.preview.requested"
	AuditMediaUploadedEmitted   AuditEventType = "upload.event.media_uploaded"
	AuditMediaProcessedEmitted  AuditEventType = "upload.event.media_processed"
)

// AuditEvent 描述一次生命周期转移的不可变审计事实。
// 审计投递为 best-effort：失败只记录日志，绝不影响主操作。
type AuditEvent struct {
	Type                AuditEventType    `json:"type"`
	UploadID            uuid.UUID         `json:"uploadId"`
	AdminID             string            `json:"adminId"`
	ContentID           *string           `json:"contentId,omitempty"`
	StorageKey          *string           `json:"storageKey,omitempty"`
	ManifestURL         *string           `json:"manifestUrl,omitempty"`
	DefaultThumbnailURL *string           `json:"defaultThumbnailUrl,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CorrelationID       string            `json:"correlationId,omitempty"`
	OccurredAt          time.Time         `json:"occurredAt"`
}

// MarshalPayload 将审计事件编码为 JSON。
func (e AuditEvent) MarshalPayload() ([]byte, error) {
	return json.Marshal(e)
}

// Attributes 构造审计消息的 Pub/Sub attributes。
func (e AuditEvent) Attributes() map[string]string {
	return map[string]string{
		"event_type":     string(e.Type),
		"aggregate_id":   e.UploadID.String(),
		"aggregate_type": AggregateTypeUpload,
		"occurred_at":    e.OccurredAt.UTC().Format(time.RFC3339),
		"schema_version": SchemaVersionV1,
	}
}
