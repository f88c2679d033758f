// Package dto 定义 HTTP 层的请求与响应结构，负责输入校验与视图转换。
package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"
	"github.com/pocketlol/services-upload/internal/models/vo"
	"github.com/pocketlol/services-upload/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/google/uuid"
)

const (
	reasonRequestInvalid = "UPLOAD_REQUEST_INVALID"

	maxFileNameLen    = 255
	minContentTypeLen = 3
	maxContentTypeLen = 128
	maxSizeBytes      = 512 * 1024 * 1024
)

// SignUploadRequest 为凭证签发请求体。
type SignUploadRequest struct {
	FileName    string  `json:"fileName"`
	ContentType string  `json:"contentType"`
	SizeBytes   int64   `json:"sizeBytes"`
	AssetType   string  `json:"assetType"`
	ContentID   *string `json:"contentId,omitempty"`
}

// Validate 校验请求体字段，镜像签发接口的入参约束。
func (r *SignUploadRequest) Validate() error {
	name := strings.TrimSpace(r.FileName)
	if name == "" || len(name) > maxFileNameLen {
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("fileName must be 1-%d characters", maxFileNameLen))
	}
	ct := strings.TrimSpace(r.ContentType)
	if len(ct) < minContentTypeLen || len(ct) > maxContentTypeLen {
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("contentType must be %d-%d characters", minContentTypeLen, maxContentTypeLen))
	}
	if r.SizeBytes <= 0 || r.SizeBytes > maxSizeBytes {
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("sizeBytes must be positive and at most %d", maxSizeBytes))
	}
	if !po.AssetType(r.AssetType).Valid() {
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("assetType %q is not supported", r.AssetType))
	}
	if r.ContentID != nil && strings.TrimSpace(*r.ContentID) == "" {
		return kerrors.BadRequest(reasonRequestInvalid, "contentId must not be blank when present")
	}
	return nil
}

// ToInput 转换为服务层输入。
func (r *SignUploadRequest) ToInput(adminID, correlationID string) services.IssueUploadInput {
	return services.IssueUploadInput{
		AdminID:       adminID,
		ContentID:     r.ContentID,
		AssetType:     po.AssetType(r.AssetType),
		FileName:      strings.TrimSpace(r.FileName),
		ContentType:   strings.TrimSpace(r.ContentType),
		SizeBytes:     r.SizeBytes,
		CorrelationID: correlationID,
	}
}

// SignUploadResponse 为凭证签发响应体。
type SignUploadResponse struct {
	UploadID   string            `json:"uploadId"`
	UploadURL  string            `json:"uploadUrl"`
	ExpiresAt  string            `json:"expiresAt"`
	Fields     map[string]string `json:"fields,omitempty"`
	ObjectKey  string            `json:"objectKey"`
	StorageURL string            `json:"storageUrl"`
	CDNURL     string            `json:"cdnUrl"`
}

// FromUploadCredential 将服务层凭证转换为响应体。
func FromUploadCredential(credential *vo.UploadCredential) *SignUploadResponse {
	if credential == nil {
		return nil
	}
	return &SignUploadResponse{
		UploadID:   credential.UploadID.String(),
		UploadURL:  credential.UploadURL,
		ExpiresAt:  credential.ExpiresAt.UTC().Format(time.RFC3339),
		Fields:     credential.Fields,
		ObjectKey:  credential.ObjectKey,
		StorageURL: credential.StorageURL,
		CDNURL:     credential.CDNURL,
	}
}

// ValidationMeta 为状态响应中的校验元数据子组。
type ValidationMeta struct {
	Checksum        *string  `json:"checksum,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Width           *int32   `json:"width,omitempty"`
	Height          *int32   `json:"height,omitempty"`
	BitrateKbps     *int32   `json:"bitrateKbps,omitempty"`
}

// ProcessingMeta 为状态响应中的处理元数据子组。
type ProcessingMeta struct {
	ManifestURL         *string    `json:"manifestUrl,omitempty"`
	DefaultThumbnailURL *string    `json:"defaultThumbnailUrl,omitempty"`
	PreviewGeneratedAt  *time.Time `json:"previewGeneratedAt,omitempty"`
}

// UploadStatusResponse 为状态查询响应体。
type UploadStatusResponse struct {
	UploadID      string          `json:"uploadId"`
	Status        string          `json:"status"`
	AssetType     string          `json:"assetType"`
	ContentID     *string         `json:"contentId,omitempty"`
	ObjectKey     string          `json:"objectKey"`
	StorageURL    string          `json:"storageUrl"`
	CDNURL        string          `json:"cdnUrl"`
	ContentType   string          `json:"contentType"`
	SizeBytes     int64           `json:"sizeBytes"`
	FailureReason *string         `json:"failureReason,omitempty"`
	ExpiresAt     string          `json:"expiresAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	Validation    *ValidationMeta `json:"validation,omitempty"`
	Processing    *ProcessingMeta `json:"processing,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FromUploadStatusView 将服务层状态投影转换为响应体。
func FromUploadStatusView(view *vo.UploadStatusView) *UploadStatusResponse {
	if view == nil {
		return nil
	}
	resp := &UploadStatusResponse{
		UploadID:      view.UploadID.String(),
		Status:        view.Status,
		AssetType:     view.AssetType,
		ContentID:     view.ContentID,
		ObjectKey:     view.ObjectKey,
		StorageURL:    view.StorageURL,
		CDNURL:        view.CDNURL,
		ContentType:   view.ContentType,
		SizeBytes:     view.SizeBytes,
		FailureReason: view.FailureReason,
		ExpiresAt:     view.ExpiresAt.UTC().Format(time.RFC3339),
		CompletedAt:   view.CompletedAt,
		CreatedAt:     view.CreatedAt,
		UpdatedAt:     view.UpdatedAt,
	}
	if view.Validation != nil {
		resp.Validation = &ValidationMeta{
			Checksum:        view.Validation.Checksum,
			DurationSeconds: view.Validation.DurationSeconds,
			Width:           view.Validation.Width,
			Height:          view.Validation.Height,
			BitrateKbps:     view.Validation.BitrateKbps,
		}
	}
	if view.Processing != nil {
		resp.Processing = &ProcessingMeta{
			ManifestURL:         view.Processing.ManifestURL,
			DefaultThumbnailURL: view.Processing.DefaultThumbnailURL,
			PreviewGeneratedAt:  view.Processing.PreviewGeneratedAt,
		}
	}
	return resp
}

// QuotaResponse 为配额查询响应体。
type QuotaResponse struct {
	ConcurrentLimit int32 `json:"concurrentLimit"`
	DailyLimit      int32 `json:"dailyLimit"`
	ActiveUploads   int32 `json:"activeUploads"`
	DailyUploads    int32 `json:"dailyUploads"`
}

// FromQuotaView 将服务层配额视图转换为响应体。
func FromQuotaView(view *vo.QuotaView) *QuotaResponse {
	if view == nil {
		return nil
	}
	return &QuotaResponse{
		ConcurrentLimit: view.ConcurrentLimit,
		DailyLimit:      view.DailyLimit,
		ActiveUploads:   view.ActiveUploads,
		DailyUploads:    view.DailyUploads,
	}
}

// 回调状态的闭集取值。
const (
	ValidationStatusSuccess = "success"
	ValidationStatusFailure = "failure"
	ProcessingStatusReady   = "ready"
	ProcessingStatusFailed  = "failed"
)

// ValidationCallbackRequest 为校验回调请求体，status 为 success|failure 的判别联合。
type ValidationCallbackRequest struct {
	Status          string   `json:"status"`
	FailureReason   *string  `json:"failureReason,omitempty"`
	Checksum        *string  `json:"checksum,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Width           *int32   `json:"width,omitempty"`
	Height          *int32   `json:"height,omitempty"`
	BitrateKbps     *int32   `json:"bitrateKbps,omitempty"`
}

// Validate 校验回调请求体。失败分支必须携带 failureReason。
func (r *ValidationCallbackRequest) Validate() error {
	switch r.Status {
	case ValidationStatusSuccess:
		return nil
	case ValidationStatusFailure:
		if r.FailureReason == nil || strings.TrimSpace(*r.FailureReason) == "" {
			return kerrors.BadRequest(reasonRequestInvalid, "failureReason is required when status is failure")
		}
		return nil
	default:
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("status must be %q or %q", ValidationStatusSuccess, ValidationStatusFailure))
	}
}

// ToInput 转换为服务层输入。
func (r *ValidationCallbackRequest) ToInput(uploadID string, correlationID string) (services.ValidationInput, error) {
	id, err := parseUploadID(uploadID)
	if err != nil {
		return services.ValidationInput{}, err
	}
	return services.ValidationInput{
		UploadID:      id,
		Success:       r.Status == ValidationStatusSuccess,
		FailureReason: r.FailureReason,
		Meta: po.SessionMeta{
			Checksum:        r.Checksum,
			DurationSeconds: r.DurationSeconds,
			Width:           r.Width,
			Height:          r.Height,
			BitrateKbps:     r.BitrateKbps,
		},
		CorrelationID: correlationID,
	}, nil
}

// ProcessingCallbackRequest 为处理回调请求体，status 为 ready|failed 的判别联合。
type ProcessingCallbackRequest struct {
	Status              string     `json:"status"`
	ManifestURL         *string    `json:"manifestUrl,omitempty"`
	DefaultThumbnailURL *string    `json:"defaultThumbnailUrl,omitempty"`
	BitrateKbps         *int32     `json:"bitrateKbps,omitempty"`
	PreviewGeneratedAt  *time.Time `json:"previewGeneratedAt,omitempty"`
	FailureReason       *string    `json:"failureReason,omitempty"`
}

// Validate 校验回调请求体。失败分支必须携带 failureReason。
func (r *ProcessingCallbackRequest) Validate() error {
	switch r.Status {
	case ProcessingStatusReady:
		return nil
	case ProcessingStatusFailed:
		if r.FailureReason == nil || strings.TrimSpace(*r.FailureReason) == "" {
			return kerrors.BadRequest(reasonRequestInvalid, "failureReason is required when status is failed")
		}
		return nil
	default:
		return kerrors.BadRequest(reasonRequestInvalid, fmt.Sprintf("status must be %q or %q", ProcessingStatusReady, ProcessingStatusFailed))
	}
}

// ToInput 转换为服务层输入。ready 分支才携带处理元数据，failed 分支只携带失败原因。
func (r *ProcessingCallbackRequest) ToInput(uploadID string, correlationID string) (services.ProcessingInput, error) {
	id, err := parseUploadID(uploadID)
	if err != nil {
		return services.ProcessingInput{}, err
	}
	input := services.ProcessingInput{
		UploadID:      id,
		Ready:         r.Status == ProcessingStatusReady,
		CorrelationID: correlationID,
	}
	if input.Ready {
		input.Meta = po.SessionMeta{
			ManifestURL:         r.ManifestURL,
			DefaultThumbnailURL: r.DefaultThumbnailURL,
			BitrateKbps:         r.BitrateKbps,
			PreviewGeneratedAt:  r.PreviewGeneratedAt,
		}
	} else {
		input.FailureReason = r.FailureReason
	}
	return input, nil
}

func parseUploadID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, kerrors.BadRequest(reasonRequestInvalid, "uploadId must be a valid UUID")
	}
	return id, nil
}

// AcceptedResponse 为回调接口的统一应答。
type AcceptedResponse struct {
	Status string `json:"status"`
}

// NewAcceptedResponse 构造回调应答。
func NewAcceptedResponse() *AcceptedResponse {
	return &AcceptedResponse{Status: "accepted"}
}
