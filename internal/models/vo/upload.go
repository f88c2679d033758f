// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，经 DTO 层转换为 API 响应，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"

	"github.com/google/uuid"
)

// UploadCredential 封装签发成功后返回给调用方的上传凭证。
type UploadCredential struct {
	UploadID   uuid.UUID         `json:"upload_id"`
	UploadURL  string            `json:"upload_url"`
	Fields     map[string]string `json:"fields"`
	ExpiresAt  time.Time         `json:"expires_at"`
	ObjectKey  string            `json:"object_key"`
	StorageURL string            `json:"storage_url"`
	CDNURL     string            `json:"cdn_url"`
}

// ValidationMetaView 为状态视图中的校验元数据子组。
type ValidationMetaView struct {
	Checksum        *string  `json:"checksum,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Width           *int32   `json:"width,omitempty"`
	Height          *int32   `json:"height,omitempty"`
	BitrateKbps     *int32   `json:"bitrate_kbps,omitempty"`
}

// ProcessingMetaView 为状态视图中的处理元数据子组。
type ProcessingMetaView struct {
	ManifestURL         *string    `json:"manifest_url,omitempty"`
	DefaultThumbnailURL *string    `json:"default_thumbnail_url,omitempty"`
	PreviewGeneratedAt  *time.Time `json:"preview_generated_at,omitempty"`
}

// UploadStatusView 是对外暴露的会话状态投影。
// 元数据子组在全部字段为空时整体省略，避免输出空对象。
type UploadStatusView struct {
	UploadID      uuid.UUID           `json:"upload_id"`
	Status        string              `json:"status"`
	AssetType     string              `json:"asset_type"`
	ContentID     *string             `json:"content_id,omitempty"`
	ObjectKey     string              `json:"object_key"`
	StorageURL    string              `json:"storage_url"`
	CDNURL        string              `json:"cdn_url"`
	ContentType   string              `json:"content_type"`
	SizeBytes     int64               `json:"size_bytes"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	ExpiresAt     time.Time           `json:"expires_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	Validation    *ValidationMetaView `json:"validation_meta,omitempty"`
	Processing    *ProcessingMetaView `json:"processing_meta,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewUploadStatusView 从会话实体构造状态投影。
func NewUploadStatusView(session *po.UploadSession) *UploadStatusView {
	if session == nil {
		return nil
	}
	view := &UploadStatusView{
		UploadID:      session.ID,
		Status:        string(session.Status),
		AssetType:     string(session.AssetType),
		ContentID:     session.ContentID,
		ObjectKey:     session.ObjectKey,
		StorageURL:    session.StorageURL,
		CDNURL:        session.CDNURL,
		ContentType:   session.ContentType,
		SizeBytes:     session.SizeBytes,
		FailureReason: session.FailureReason,
		ExpiresAt:     session.ExpiresAt,
		CompletedAt:   session.CompletedAt,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
	if session.Meta.HasValidationFields() {
		view.Validation = &ValidationMetaView{
			Checksum:        session.Meta.Checksum,
			DurationSeconds: session.Meta.DurationSeconds,
			Width:           session.Meta.Width,
			Height:          session.Meta.Height,
			BitrateKbps:     session.Meta.BitrateKbps,
		}
	}
	if session.Meta.HasProcessingFields() {
		view.Processing = &ProcessingMetaView{
			ManifestURL:         session.Meta.ManifestURL,
			DefaultThumbnailURL: session.Meta.DefaultThumbnailURL,
			PreviewGeneratedAt:  session.Meta.PreviewGeneratedAt,
		}
	}
	return view
}

// QuotaView 汇总配额占用与上限，供配额查询接口返回。
type QuotaView struct {
	ActiveUploads   int32 `json:"active_uploads"`
	DailyUploads    int32 `json:"daily_uploads"`
	ConcurrentLimit int32 `json:"concurrent_limit"`
	DailyLimit      int32 `json:"daily_limit"`
}

// NewQuotaView 从配额快照与上限构造视图。
func NewQuotaView(state po.QuotaState, limits po.QuotaLimits) *QuotaView {
	return &QuotaView{
		ActiveUploads:   state.ActiveUploads,
		DailyUploads:    state.DailyUploads,
		ConcurrentLimit: limits.ConcurrentLimit,
		DailyLimit:      limits.DailyLimit,
	}
}
