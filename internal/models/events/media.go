package events

import (
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"

	"github.com/google/uuid"
)

// 语义化事件类型，作为消息 attributes 中的 event_type。
const (
	EventTypeMediaUploaded    = "media.uploaded"
	EventTypePreviewRequested = "preview.requested"
	EventTypeMediaProcessed   = "media.processed"
)

// MediaUploadedPayload 为校验通过后发布的 media.uploaded 事件载荷。
type MediaUploadedPayload struct {
	UploadID    string         `json:"uploadId"`
	ObjectKey   string         `json:"objectKey"`
	StorageURL  string         `json:"storageUrl"`
	CDNURL      string         `json:"cdnUrl"`
	AssetType   string         `json:"assetType"`
	AdminID     string         `json:"adminId"`
	ContentID   *string        `json:"contentId,omitempty"`
	SizeBytes   int64          `json:"sizeBytes"`
	ContentType string         `json:"contentType"`
	Validation  po.SessionMeta `json:"validation"`
	EmittedAt   time.Time      `json:"emittedAt"`
}

// NewMediaUploadedEvent 基于会话实体构建 media.uploaded 事件。
func NewMediaUploadedEvent(session *po.UploadSession, eventID uuid.UUID, occurredAt time.Time) (Envelope, error) {
	if session == nil {
		return Envelope{}, ErrNilSession
	}
	if eventID == uuid.Nil {
		return Envelope{}, ErrInvalidEventID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return Envelope{
		EventID:     eventID,
		EventType:   EventTypeMediaUploaded,
		AggregateID: session.ID.String(),
		OccurredAt:  occurredAt,
		Payload: MediaUploadedPayload{
			UploadID:    session.ID.String(),
			ObjectKey:   session.ObjectKey,
			StorageURL:  session.StorageURL,
			CDNURL:      session.CDNURL,
			AssetType:   string(session.AssetType),
			AdminID:     session.AdminID,
			ContentID:   session.ContentID,
			SizeBytes:   session.SizeBytes,
			ContentType: session.ContentType,
			Validation:  session.Meta,
			EmittedAt:   occurredAt.UTC(),
		},
	}, nil
}

// PreviewRequestedPayload 为视频资产发布的 preview.requested 事件载荷。
type PreviewRequestedPayload struct {
	UploadID    string    `json:"uploadId"`
	ObjectKey   string    `json:"objectKey"`
	StorageURL  string    `json:"storageUrl"`
	AdminID     string    `json:"adminId"`
	ContentID   *string   `json:"contentId,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewPreviewRequestedEvent 构建 preview.requested 事件，仅对 video 资产有意义。
func NewPreviewRequestedEvent(session *po.UploadSession, eventID uuid.UUID, occurredAt time.Time) (Envelope, error) {
	if session == nil {
		return Envelope{}, ErrNilSession
	}
	if eventID == uuid.Nil {
		return Envelope{}, ErrInvalidEventID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return Envelope{
		EventID:     eventID,
		EventType:   EventTypePreviewRequested,
		AggregateID: session.ID.String(),
		OccurredAt:  occurredAt,
		Payload: PreviewRequestedPayload{
			UploadID:    session.ID.String(),
			ObjectKey:   session.ObjectKey,
			StorageURL:  session.StorageURL,
			AdminID:     session.AdminID,
			ContentID:   session.ContentID,
			RequestedAt: occurredAt.UTC(),
		},
	}, nil
}

// MediaProcessedPayload 为处理完成后发布的 media.processed 事件载荷，
// 携带合并后的校验与处理元数据。
type MediaProcessedPayload struct {
	UploadID            string     `json:"uploadId"`
	ObjectKey           string     `json:"objectKey"`
	StorageURL          string     `json:"storageUrl"`
	CDNURL              string     `json:"cdnUrl"`
	AdminID             string     `json:"adminId"`
	ContentID           *string    `json:"contentId,omitempty"`
	AssetType           string     `json:"assetType"`
	ManifestURL         *string    `json:"manifestUrl,omitempty"`
	DefaultThumbnailURL *string    `json:"defaultThumbnailUrl,omitempty"`
	DurationSeconds     *float64   `json:"durationSeconds,omitempty"`
	BitrateKbps         *int32     `json:"bitrateKbps,omitempty"`
	PreviewGeneratedAt  *time.Time `json:"previewGeneratedAt,omitempty"`
	EmittedAt           time.Time  `json:"emittedAt"`
}

// NewMediaProcessedEvent 基于终态为 READY 的会话构建 media.processed 事件。
func NewMediaProcessedEvent(session *po.UploadSession, eventID uuid.UUID, occurredAt time.Time) (Envelope, error) {
	if session == nil {
		return Envelope{}, ErrNilSession
	}
	if eventID == uuid.Nil {
		return Envelope{}, ErrInvalidEventID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return Envelope{
		EventID:     eventID,
		EventType:   EventTypeMediaProcessed,
		AggregateID: session.ID.String(),
		OccurredAt:  occurredAt,
		Payload: MediaProcessedPayload{
			UploadID:            session.ID.String(),
			ObjectKey:           session.ObjectKey,
			StorageURL:          session.StorageURL,
			CDNURL:              session.CDNURL,
			AdminID:             session.AdminID,
			ContentID:           session.ContentID,
			AssetType:           string(session.AssetType),
			ManifestURL:         session.Meta.ManifestURL,
			DefaultThumbnailURL: session.Meta.DefaultThumbnailURL,
			DurationSeconds:     session.Meta.DurationSeconds,
			BitrateKbps:         session.Meta.BitrateKbps,
			PreviewGeneratedAt:  session.Meta.PreviewGeneratedAt,
			EmittedAt:           occurredAt.UTC(),
		},
	}, nil
}
