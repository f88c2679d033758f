package events_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pocketlol/services-upload/internal/models/events"
	"github.com/pocketlol/services-upload/internal/models/po"

	"github.com/google/uuid"
)

func testSession() *po.UploadSession {
	contentID := uuid.NewString()
	checksum := "abc123"
	duration := 123.5
	return &po.UploadSession{
		ID:          uuid.New(),
		AdminID:     "admin-1",
		ContentID:   &contentID,
		AssetType:   po.AssetTypeVideo,
		FileName:    "clip.mp4",
		ContentType: "video/mp4",
		SizeBytes:   2048,
		Bucket:      "media-bucket",
		ObjectKey:   "videos/123-abc-clip.mp4",
		StorageURL:  "gs://media-bucket/videos/123-abc-clip.mp4",
		CDNURL:      "https://cdn.example/videos/123-abc-clip.mp4",
		Status:      po.UploadStatusReady,
		Meta: po.SessionMeta{
			Checksum:        &checksum,
			DurationSeconds: &duration,
		},
	}
}

func TestNewMediaUploadedEvent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := testSession()
	eventID := uuid.New()

	env, err := events.NewMediaUploadedEvent(session, eventID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventType != events.EventTypeMediaUploaded {
		t.Fatalf("event type = %s", env.EventType)
	}
	if env.AggregateID != session.ID.String() {
		t.Fatalf("aggregate mismatch")
	}
	payload, ok := env.Payload.(events.MediaUploadedPayload)
	if !ok {
		t.Fatalf("payload type mismatch: %T", env.Payload)
	}
	if payload.ObjectKey != session.ObjectKey || payload.AdminID != session.AdminID {
		t.Fatalf("payload mismatch: %+v", payload)
	}
	if payload.Validation.Checksum == nil || *payload.Validation.Checksum != "abc123" {
		t.Fatalf("validation meta missing from payload")
	}

	raw, err := env.MarshalPayload()
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded["uploadId"] != session.ID.String() {
		t.Fatalf("uploadId = %v", decoded["uploadId"])
	}
}

func TestNewMediaUploadedEvent_Validation(t *testing.T) {
	if _, err := events.NewMediaUploadedEvent(nil, uuid.New(), time.Now()); !errors.Is(err, events.ErrNilSession) {
		t.Fatalf("nil session error = %v", err)
	}
	if _, err := events.NewMediaUploadedEvent(testSession(), uuid.Nil, time.Now()); !errors.Is(err, events.ErrInvalidEventID) {
		t.Fatalf("nil event id error = %v", err)
	}

	// occurredAt 为零值时退化为当前时间。
	env, err := events.NewMediaUploadedEvent(testSession(), uuid.New(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.OccurredAt.IsZero() {
		t.Fatalf("occurred_at not defaulted")
	}
}

func TestNewPreviewRequestedEvent(t *testing.T) {
	session := testSession()
	env, err := events.NewPreviewRequestedEvent(session, uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventType != events.EventTypePreviewRequested {
		t.Fatalf("event type = %s", env.EventType)
	}
	payload, ok := env.Payload.(events.PreviewRequestedPayload)
	if !ok {
		t.Fatalf("payload type mismatch: %T", env.Payload)
	}
	if payload.StorageURL != session.StorageURL {
		t.Fatalf("storage url = %s", payload.StorageURL)
	}
}

func TestNewMediaProcessedEvent(t *testing.T) {
	session := testSession()
	manifest := "https://cdn.example/videos/clip/manifest.m3u8"
	generatedAt := time.Now().UTC()
	session.Meta.ManifestURL = &manifest
	session.Meta.PreviewGeneratedAt = &generatedAt

	env, err := events.NewMediaProcessedEvent(session, uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, ok := env.Payload.(events.MediaProcessedPayload)
	if !ok {
		t.Fatalf("payload type mismatch: %T", env.Payload)
	}
	if payload.ManifestURL == nil || *payload.ManifestURL != manifest {
		t.Fatalf("manifest url = %v", payload.ManifestURL)
	}
	if payload.PreviewGeneratedAt == nil || !payload.PreviewGeneratedAt.Equal(generatedAt) {
		t.Fatalf("preview generated at = %v", payload.PreviewGeneratedAt)
	}
	if payload.DurationSeconds == nil || *payload.DurationSeconds != 123.5 {
		t.Fatalf("duration = %v", payload.DurationSeconds)
	}
}

func TestEnvelopeAttributes(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := testSession()
	eventID := uuid.New()
	env, err := events.NewMediaUploadedEvent(session, eventID, now)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	attrs := env.Attributes("trace123")
	if attrs["event_id"] != eventID.String() {
		t.Fatalf("event_id = %s", attrs["event_id"])
	}
	if attrs["event_type"] != "media.uploaded" {
		t.Fatalf("event_type = %s", attrs["event_type"])
	}
	if attrs["aggregate_type"] != events.AggregateTypeUpload {
		t.Fatalf("aggregate_type = %s", attrs["aggregate_type"])
	}
	if attrs["occurred_at"] != "2026-08-01T12:00:00Z" {
		t.Fatalf("occurred_at = %s", attrs["occurred_at"])
	}
	if attrs["schema_version"] != events.SchemaVersionV1 {
		t.Fatalf("schema_version = %s", attrs["schema_version"])
	}
	if attrs["trace_id"] != "trace123" {
		t.Fatalf("trace_id = %s", attrs["trace_id"])
	}

	attrs = env.Attributes("")
	if _, ok := attrs["trace_id"]; ok {
		t.Fatalf("trace_id present without a trace")
	}
}
