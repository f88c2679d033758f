package controllers_test

import (
	"context"
	"testing"
	"time"

	"github.com/pocketlol/services-upload/internal/controllers"
)

func TestBaseHandlerWithTimeout(t *testing.T) {
	handler := controllers.NewBaseHandler(controllers.HandlerTimeouts{
		Command: 200 * time.Millisecond,
		Query:   100 * time.Millisecond,
	})

	ctx, cancel := handler.WithTimeout(context.Background(), controllers.HandlerTypeCommand)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected deadline to be set")
	}
	remaining := time.Until(deadline)
	if remaining < 150*time.Millisecond || remaining > 250*time.Millisecond {
		t.Fatalf("expected timeout near 200ms, got %v", remaining)
	}

	ctx, cancel = handler.WithTimeout(context.Background(), controllers.HandlerTypeQuery)
	defer cancel()
	deadline, ok = ctx.Deadline()
	if !ok {
		t.Fatalf("expected query deadline to be set")
	}
	if remaining := time.Until(deadline); remaining > 150*time.Millisecond {
		t.Fatalf("expected query timeout near 100ms, got %v", remaining)
	}
}

func TestBaseHandlerTimeoutFallbacks(t *testing.T) {
	// 全零配置回退到内置默认值。
	handler := controllers.NewBaseHandler(controllers.HandlerTimeouts{})
	ctx, cancel := handler.WithTimeout(context.Background(), controllers.HandlerTypeDefault)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected fallback deadline")
	}

	// 只配置 Command 时其余类型继承该值。
	handler = controllers.NewBaseHandler(controllers.HandlerTimeouts{Command: time.Second})
	ctx, cancel = handler.WithTimeout(context.Background(), controllers.HandlerTypeQuery)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected inherited deadline")
	}
	if remaining := time.Until(deadline); remaining > time.Second {
		t.Fatalf("inherited timeout too large: %v", remaining)
	}
}
