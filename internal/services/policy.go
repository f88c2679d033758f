package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"
)

// AssetPolicy 描述一类资产的准入约束：存储前缀、大小上限与允许的内容类型。
type AssetPolicy struct {
	AssetType    po.AssetType
	KeyPrefix    string
	MaxSizeBytes int64
	contentTypes []*regexp.Regexp
}

// AllowsContentType 判断声明的内容类型是否匹配策略允许的模式。
func (p AssetPolicy) AllowsContentType(contentType string) bool {
	for _, pattern := range p.contentTypes {
		if pattern.MatchString(contentType) {
			return true
		}
	}
	return false
}

var assetPolicies = map[po.AssetType]AssetPolicy{
	po.AssetTypeVideo: {
		AssetType:    po.AssetTypeVideo,
		KeyPrefix:    "videos",
		MaxSizeBytes: 512 * 1024 * 1024,
		contentTypes: []*regexp.Regexp{regexp.MustCompile(`^video/`)},
	},
	po.AssetTypeThumbnail: {
		AssetType:    po.AssetTypeThumbnail,
		KeyPrefix:    "thumbnails",
		MaxSizeBytes: 25 * 1024 * 1024,
		contentTypes: []*regexp.Regexp{regexp.MustCompile(`^image/(jpeg|png|webp)$`)},
	},
	po.AssetTypeBanner: {
		AssetType:    po.AssetTypeBanner,
		KeyPrefix:    "banners",
		MaxSizeBytes: 25 * 1024 * 1024,
		contentTypes: []*regexp.Regexp{regexp.MustCompile(`^image/(jpeg|png|webp)$`)},
	},
}

// PolicyFor 返回资产类型对应的准入策略。
func PolicyFor(assetType po.AssetType) (AssetPolicy, bool) {
	policy, ok := assetPolicies[assetType]
	return policy, ok
}

const maxSanitizedFileName = 160

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeCharRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// SanitizeFileName 清洗调用方提供的文件名：空白折叠为连字符，
// 其余非 [A-Za-z0-9._-] 字符替换为下划线，并截断到上限长度。
func SanitizeFileName(fileName string) string {
	sanitized := strings.TrimSpace(fileName)
	sanitized = whitespaceRe.ReplaceAllString(sanitized, "-")
	sanitized = unsafeCharRe.ReplaceAllString(sanitized, "_")
	if len(sanitized) > maxSanitizedFileName {
		sanitized = sanitized[:maxSanitizedFileName]
	}
	return sanitized
}

// BuildObjectKey 生成唯一存储路径：策略前缀 + 毫秒时间戳 + 随机指纹 + 清洗后的文件名。
func BuildObjectKey(policy AssetPolicy, fileName string, now time.Time) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate object key nonce: %w", err)
	}
	return policy.KeyPrefix + "/" +
		strconv.FormatInt(now.UnixMilli(), 10) + "-" +
		hex.EncodeToString(nonce) + "-" +
		SanitizeFileName(fileName), nil
}
