package services_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"
	"github.com/pocketlol/services-upload/internal/services"
)

func TestPolicyFor(t *testing.T) {
	cases := []struct {
		assetType po.AssetType
		prefix    string
		maxBytes  int64
		allowed   []string
		rejected  []string
	}{
		{
			assetType: po.AssetTypeVideo,
			prefix:    "videos",
			maxBytes:  512 * 1024 * 1024,
			allowed:   []string{"video/mp4", "video/webm", "video/quicktime"},
			rejected:  []string{"image/png", "application/octet-stream", "audio/mpeg"},
		},
		{
			assetType: po.AssetTypeThumbnail,
			prefix:    "thumbnails",
			maxBytes:  25 * 1024 * 1024,
			allowed:   []string{"image/jpeg", "image/png", "image/webp"},
			rejected:  []string{"image/gif", "image/svg+xml", "video/mp4"},
		},
		{
			assetType: po.AssetTypeBanner,
			prefix:    "banners",
			maxBytes:  25 * 1024 * 1024,
			allowed:   []string{"image/jpeg", "image/png", "image/webp"},
			rejected:  []string{"image/gif", "text/html"},
		},
	}
	for _, tc := range cases {
		t.Run(string(tc.assetType), func(t *testing.T) {
			policy, ok := services.PolicyFor(tc.assetType)
			if !ok {
				t.Fatalf("PolicyFor(%s) not found", tc.assetType)
			}
			if policy.KeyPrefix != tc.prefix {
				t.Fatalf("key prefix = %q, want %q", policy.KeyPrefix, tc.prefix)
			}
			if policy.MaxSizeBytes != tc.maxBytes {
				t.Fatalf("max size = %d, want %d", policy.MaxSizeBytes, tc.maxBytes)
			}
			for _, ct := range tc.allowed {
				if !policy.AllowsContentType(ct) {
					t.Fatalf("content type %q rejected, want allowed", ct)
				}
			}
			for _, ct := range tc.rejected {
				if policy.AllowsContentType(ct) {
					t.Fatalf("content type %q allowed, want rejected", ct)
				}
			}
		})
	}

	if _, ok := services.PolicyFor("document"); ok {
		t.Fatalf("PolicyFor(document) = true, want false")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"  My Holiday Clip.mp4  ", "My-Holiday-Clip.mp4"},
		{"weird/../path\\name.mp4", "weird_.._path_name.mp4"},
		{"émoji🎬.mp4", "_moji_.mp4"},
	}
	for _, tc := range cases {
		if got := services.SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := strings.Repeat("a", 400) + ".mp4"
	if got := services.SanitizeFileName(long); len(got) > 160 {
		t.Fatalf("sanitized length = %d, want <= 160", len(got))
	}
}

func TestBuildObjectKey(t *testing.T) {
	policy, ok := services.PolicyFor(po.AssetTypeVideo)
	if !ok {
		t.Fatalf("video policy not found")
	}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	key, err := services.BuildObjectKey(policy, "My Clip.mp4", now)
	if err != nil {
		t.Fatalf("BuildObjectKey: %v", err)
	}
	if !strings.HasPrefix(key, "videos/") {
		t.Fatalf("key = %q, want videos/ prefix", key)
	}
	if !strings.HasSuffix(key, "My-Clip.mp4") {
		t.Fatalf("key = %q, want sanitized file name suffix", key)
	}
	if strings.ContainsAny(key, " \t") {
		t.Fatalf("key %q contains whitespace", key)
	}

	// 同一输入两次生成必须不同，随机指纹保证唯一性。
	other, err := services.BuildObjectKey(policy, "My Clip.mp4", now)
	if err != nil {
		t.Fatalf("BuildObjectKey: %v", err)
	}
	if key == other {
		t.Fatalf("object keys collide: %q", key)
	}
}
