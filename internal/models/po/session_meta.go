package po

import "time"

// SessionMeta 聚合校验与处理回调逐步补写的元数据。
// 合并语义为字段级覆盖：调用方只提供已知字段，未提供的字段保持原值，
// 避免后到的回调整体覆盖先前写入的内容。
type SessionMeta struct {
	Checksum            *string    `json:"checksum,omitempty"`
	DurationSeconds     *float64   `json:"durationSeconds,omitempty"`
	Width               *int32     `json:"width,omitempty"`
	Height              *int32     `json:"height,omitempty"`
	BitrateKbps         *int32     `json:"bitrateKbps,omitempty"`
	ManifestURL         *string    `json:"manifestUrl,omitempty"`
	DefaultThumbnailURL *string    `json:"defaultThumbnailUrl,omitempty"`
	PreviewGeneratedAt  *time.Time `json:"previewGeneratedAt,omitempty"`
}

// Merge 将 patch 中已提供的字段覆盖到当前值上，返回合并结果。
func (m SessionMeta) Merge(patch SessionMeta) SessionMeta {
	out := m
	if patch.Checksum != nil {
		out.Checksum = patch.Checksum
	}
	if patch.DurationSeconds != nil {
		out.DurationSeconds = patch.DurationSeconds
	}
	if patch.Width != nil {
		out.Width = patch.Width
	}
	if patch.Height != nil {
		out.Height = patch.Height
	}
	if patch.BitrateKbps != nil {
		out.BitrateKbps = patch.BitrateKbps
	}
	if patch.ManifestURL != nil {
		out.ManifestURL = patch.ManifestURL
	}
	if patch.DefaultThumbnailURL != nil {
		out.DefaultThumbnailURL = patch.DefaultThumbnailURL
	}
	if patch.PreviewGeneratedAt != nil {
		out.PreviewGeneratedAt = patch.PreviewGeneratedAt
	}
	return out
}

// HasValidationFields 判断校验子组（checksum/时长/宽高）是否有任一字段存在。
func (m SessionMeta) HasValidationFields() bool {
	return m.Checksum != nil || m.DurationSeconds != nil || m.Width != nil || m.Height != nil || m.BitrateKbps != nil
}

// HasProcessingFields 判断处理子组（manifest/缩略图/预览时间）是否有任一字段存在。
func (m SessionMeta) HasProcessingFields() bool {
	return m.ManifestURL != nil || m.DefaultThumbnailURL != nil || m.PreviewGeneratedAt != nil
}
