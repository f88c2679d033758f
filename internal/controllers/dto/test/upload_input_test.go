package dto_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pocketlol/services-upload/internal/controllers/dto"
	"github.com/pocketlol/services-upload/internal/models/po"
	"github.com/pocketlol/services-upload/internal/models/vo"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func validSignRequest() dto.SignUploadRequest {
	return dto.SignUploadRequest{
		FileName:    "clip.mp4",
		ContentType: "video/mp4",
		SizeBytes:   1024,
		AssetType:   "video",
	}
}

func TestSignUploadRequestValidate(t *testing.T) {
	req := validSignRequest()
	if err := req.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*dto.SignUploadRequest)
	}{
		{"empty file name", func(r *dto.SignUploadRequest) { r.FileName = "   " }},
		{"file name too long", func(r *dto.SignUploadRequest) { r.FileName = strings.Repeat("a", 256) }},
		{"content type too short", func(r *dto.SignUploadRequest) { r.ContentType = "ab" }},
		{"zero size", func(r *dto.SignUploadRequest) { r.SizeBytes = 0 }},
		{"negative size", func(r *dto.SignUploadRequest) { r.SizeBytes = -1 }},
		{"size over cap", func(r *dto.SignUploadRequest) { r.SizeBytes = 513 * 1024 * 1024 }},
		{"unknown asset type", func(r *dto.SignUploadRequest) { r.AssetType = "document" }},
		{"blank content id", func(r *dto.SignUploadRequest) { r.ContentID = strPtr("  ") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validSignRequest()
			tc.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if kerr := kerrors.FromError(err); kerr == nil || kerr.Code != 400 {
				t.Fatalf("error = %v, want 400", err)
			}
		})
	}
}

func TestSignUploadRequestToInput(t *testing.T) {
	req := validSignRequest()
	req.FileName = "  clip.mp4  "
	req.ContentID = strPtr("content-1")

	input := req.ToInput("admin-1", "corr-1")
	if input.AdminID != "admin-1" || input.CorrelationID != "corr-1" {
		t.Fatalf("identity fields = %q/%q", input.AdminID, input.CorrelationID)
	}
	if input.FileName != "clip.mp4" {
		t.Fatalf("file name = %q, want trimmed", input.FileName)
	}
	if input.AssetType != po.AssetTypeVideo {
		t.Fatalf("asset type = %s", input.AssetType)
	}
	if input.ContentID == nil || *input.ContentID != "content-1" {
		t.Fatalf("content id = %v", input.ContentID)
	}
}

func TestValidationCallbackRequestValidate(t *testing.T) {
	success := dto.ValidationCallbackRequest{Status: dto.ValidationStatusSuccess}
	if err := success.Validate(); err != nil {
		t.Fatalf("success rejected: %v", err)
	}

	failure := dto.ValidationCallbackRequest{Status: dto.ValidationStatusFailure}
	if err := failure.Validate(); err == nil {
		t.Fatalf("failure without reason accepted")
	}
	failure.FailureReason = strPtr("checksum mismatch")
	if err := failure.Validate(); err != nil {
		t.Fatalf("failure with reason rejected: %v", err)
	}

	unknown := dto.ValidationCallbackRequest{Status: "done"}
	if err := unknown.Validate(); err == nil {
		t.Fatalf("unknown status accepted")
	}
}

func TestValidationCallbackRequestToInput(t *testing.T) {
	duration := 120.5
	req := dto.ValidationCallbackRequest{
		Status:          dto.ValidationStatusSuccess,
		Checksum:        strPtr("abc"),
		DurationSeconds: &duration,
	}
	id := uuid.New()

	input, err := req.ToInput(id.String(), "corr-1")
	if err != nil {
		t.Fatalf("ToInput: %v", err)
	}
	if input.UploadID != id || !input.Success {
		t.Fatalf("input = %+v", input)
	}
	if input.Meta.Checksum == nil || *input.Meta.Checksum != "abc" {
		t.Fatalf("meta checksum = %v", input.Meta.Checksum)
	}

	if _, err := req.ToInput("not-a-uuid", "corr-1"); err == nil {
		t.Fatalf("invalid upload id accepted")
	}
}

func TestProcessingCallbackRequestToInput(t *testing.T) {
	manifest := "https://cdn.example/m.m3u8"
	req := dto.ProcessingCallbackRequest{
		Status:      dto.ProcessingStatusReady,
		ManifestURL: &manifest,
	}
	id := uuid.New()

	input, err := req.ToInput(id.String(), "corr-1")
	if err != nil {
		t.Fatalf("ToInput: %v", err)
	}
	if !input.Ready {
		t.Fatalf("ready = false")
	}
	if input.Meta.ManifestURL == nil || *input.Meta.ManifestURL != manifest {
		t.Fatalf("manifest = %v", input.Meta.ManifestURL)
	}

	// failed 分支只携带失败原因，处理元数据被忽略。
	failReq := dto.ProcessingCallbackRequest{
		Status:        dto.ProcessingStatusFailed,
		ManifestURL:   &manifest,
		FailureReason: strPtr("transcode crashed"),
	}
	input, err = failReq.ToInput(id.String(), "corr-1")
	if err != nil {
		t.Fatalf("ToInput: %v", err)
	}
	if input.Ready {
		t.Fatalf("ready = true for failed status")
	}
	if input.Meta.ManifestURL != nil {
		t.Fatalf("failed branch carried processing meta")
	}
	if input.FailureReason == nil || *input.FailureReason != "transcode crashed" {
		t.Fatalf("failure reason = %v", input.FailureReason)
	}
}

func TestFromUploadStatusView(t *testing.T) {
	checksum := "abc"
	manifest := "https://cdn.example/m.m3u8"
	now := time.Now()
	view := &vo.UploadStatusView{
		UploadID:    uuid.New(),
		Status:      "ready",
		AssetType:   "video",
		ObjectKey:   "videos/clip.mp4",
		StorageURL:  "gs://bucket/videos/clip.mp4",
		CDNURL:      "https://cdn.example/videos/clip.mp4",
		ContentType: "video/mp4",
		SizeBytes:   2048,
		ExpiresAt:   now.Add(10 * time.Minute),
		CreatedAt:   now,
		UpdatedAt:   now,
		Validation:  &vo.ValidationMetaView{Checksum: &checksum},
		Processing:  &vo.ProcessingMetaView{ManifestURL: &manifest},
	}

	resp := dto.FromUploadStatusView(view)
	if resp.UploadID != view.UploadID.String() || resp.Status != "ready" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Validation == nil || *resp.Validation.Checksum != checksum {
		t.Fatalf("validation meta = %+v", resp.Validation)
	}
	if resp.Processing == nil || *resp.Processing.ManifestURL != manifest {
		t.Fatalf("processing meta = %+v", resp.Processing)
	}

	if dto.FromUploadStatusView(nil) != nil {
		t.Fatalf("nil view must map to nil response")
	}
}
