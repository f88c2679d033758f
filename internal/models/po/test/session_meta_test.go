package po_test

import (
	"testing"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"
)

func strPtr(s string) *string       { return &s }
func f64Ptr(f float64) *float64     { return &f }
func i32Ptr(i int32) *int32         { return &i }
func timePtr(t time.Time) *time.Time { return &t }

func TestSessionMetaMerge(t *testing.T) {
	base := po.SessionMeta{
		Checksum:        strPtr("abc"),
		DurationSeconds: f64Ptr(120),
		Width:           i32Ptr(1920),
		Height:          i32Ptr(1080),
	}

	// 仅覆盖补丁中出现的字段，未提供的字段保持原值。
	merged := base.Merge(po.SessionMeta{
		ManifestURL:        strPtr("https://cdn.example/m.m3u8"),
		PreviewGeneratedAt: timePtr(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)),
	})
	if merged.Checksum == nil || *merged.Checksum != "abc" {
		t.Fatalf("checksum lost on merge: %v", merged.Checksum)
	}
	if merged.Width == nil || *merged.Width != 1920 {
		t.Fatalf("width lost on merge: %v", merged.Width)
	}
	if merged.ManifestURL == nil || *merged.ManifestURL != "https://cdn.example/m.m3u8" {
		t.Fatalf("manifest url not merged: %v", merged.ManifestURL)
	}

	// 补丁可以覆盖已有字段。
	merged = merged.Merge(po.SessionMeta{Checksum: strPtr("def")})
	if *merged.Checksum != "def" {
		t.Fatalf("checksum = %s, want def", *merged.Checksum)
	}

	// 空补丁不改变任何字段。
	again := merged.Merge(po.SessionMeta{})
	if *again.Checksum != "def" || again.ManifestURL == nil {
		t.Fatalf("empty patch mutated fields: %+v", again)
	}
}

func TestSessionMetaFieldGroups(t *testing.T) {
	var empty po.SessionMeta
	if empty.HasValidationFields() || empty.HasProcessingFields() {
		t.Fatalf("empty meta reports populated groups")
	}

	validation := po.SessionMeta{DurationSeconds: f64Ptr(60)}
	if !validation.HasValidationFields() {
		t.Fatalf("duration not counted as validation field")
	}
	if validation.HasProcessingFields() {
		t.Fatalf("duration counted as processing field")
	}

	processing := po.SessionMeta{DefaultThumbnailURL: strPtr("https://cdn.example/t.jpg")}
	if !processing.HasProcessingFields() {
		t.Fatalf("thumbnail not counted as processing field")
	}
	if processing.HasValidationFields() {
		t.Fatalf("thumbnail counted as validation field")
	}
}

func TestUploadStatusTerminal(t *testing.T) {
	terminal := []po.UploadStatus{po.UploadStatusReady, po.UploadStatusFailed, po.UploadStatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s not reported terminal", s)
		}
	}
	active := []po.UploadStatus{po.UploadStatusPending, po.UploadStatusUploading, po.UploadStatusValidating}
	for _, s := range active {
		if s.Terminal() {
			t.Fatalf("%s reported terminal", s)
		}
	}
}

func TestAssetTypeValid(t *testing.T) {
	for _, a := range []po.AssetType{po.AssetTypeVideo, po.AssetTypeThumbnail, po.AssetTypeBanner} {
		if !a.Valid() {
			t.Fatalf("%s reported invalid", a)
		}
	}
	if po.AssetType("document").Valid() {
		t.Fatalf("document reported valid")
	}
}
