package metadata_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/pocketlol/services-upload/internal/metadata"

	"github.com/google/uuid"
)

func TestFromHeader(t *testing.T) {
	header := http.Header{}
	header.Set(metadata.HeaderAdminID, "  admin-1  ")
	header.Set(metadata.HeaderAdminRoles, "Admin, Uploader , ")
	header.Set(metadata.HeaderRequestID, "req-123")

	meta := metadata.FromHeader(header)
	if meta.AdminID != "admin-1" {
		t.Fatalf("admin id = %q", meta.AdminID)
	}
	if len(meta.Roles) != 2 || meta.Roles[0] != "admin" || meta.Roles[1] != "uploader" {
		t.Fatalf("roles = %v", meta.Roles)
	}
	if meta.CorrelationID != "req-123" {
		t.Fatalf("correlation id = %q", meta.CorrelationID)
	}
	if !meta.HasRole("ADMIN") || meta.HasRole("viewer") {
		t.Fatalf("role check failed: %v", meta.Roles)
	}
}

func TestFromHeaderGeneratesCorrelationID(t *testing.T) {
	header := http.Header{}
	header.Set(metadata.HeaderAdminID, "admin-1")

	meta := metadata.FromHeader(header)
	if meta.CorrelationID == "" {
		t.Fatalf("correlation id not generated")
	}
	if _, err := uuid.Parse(meta.CorrelationID); err != nil {
		t.Fatalf("generated correlation id %q is not a UUID: %v", meta.CorrelationID, err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	meta := metadata.RequestMeta{AdminID: "admin-1", Roles: []string{"admin"}, CorrelationID: "corr-1"}
	ctx := metadata.Inject(context.Background(), meta)

	stored, ok := metadata.FromContext(ctx)
	if !ok {
		t.Fatalf("metadata missing from context")
	}
	if stored.AdminID != meta.AdminID || stored.CorrelationID != meta.CorrelationID {
		t.Fatalf("stored = %+v", stored)
	}
	if got := metadata.CorrelationID(ctx); got != "corr-1" {
		t.Fatalf("correlation id = %q", got)
	}

	if _, ok := metadata.FromContext(context.Background()); ok {
		t.Fatalf("empty context reported metadata")
	}
	if metadata.CorrelationID(context.Background()) != "" {
		t.Fatalf("empty context returned correlation id")
	}
}
