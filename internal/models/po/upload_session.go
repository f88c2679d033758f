// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给上层业务逻辑。
package po

import (
	"time"

	"github.com/google/uuid"
)

// AssetType 表示上传资产的类别，决定适用的准入策略。
type AssetType string

const (
	AssetTypeVideo     AssetType = "video"
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeBanner    AssetType = "banner"
)

// Valid 判断资产类型是否在受支持的闭集内。
func (a AssetType) Valid() bool {
	switch a {
	case AssetTypeVideo, AssetTypeThumbnail, AssetTypeBanner:
		return true
	default:
		return false
	}
}

// UploadStatus 表示上传会话生命周期状态。
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"    // 会话已创建，凭证尚未交付
	UploadStatusUploading  UploadStatus = "uploading"  // 凭证已签发，等待对象写入
	UploadStatusValidating UploadStatus = "validating" // 校验回调已到达，结果未定
	UploadStatusReady      UploadStatus = "ready"      // 校验/处理完成
	UploadStatusFailed     UploadStatus = "failed"     // 校验或处理失败
	UploadStatusExpired    UploadStatus = "expired"    // 超时由后台清扫标记
)

// Terminal 判断状态是否为终态。
// READY 仍可能被后续处理失败回调改写为 FAILED，这是状态机中唯一的例外。
func (s UploadStatus) Terminal() bool {
	switch s {
	case UploadStatusReady, UploadStatusFailed, UploadStatusExpired:
		return true
	default:
		return false
	}
}

// UploadSession 描述 upload.sessions 表中的一条上传会话记录。
type UploadSession struct {
	ID              uuid.UUID
	AdminID         string
	ContentID       *string
	AssetType       AssetType
	FileName        string
	ContentType     string
	SizeBytes       int64
	Bucket          string
	ObjectKey       string
	StorageURL      string
	CDNURL          string
	UploadURL       *string
	Status          UploadStatus
	FailureReason   *string
	Meta            SessionMeta
	FormFields      map[string]string
	ExpiresAt       time.Time
	CompletedAt     *time.Time
	QuotaReleasedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
