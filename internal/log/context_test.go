// SPDX-License-Identifier: MIT

package log

import (
	"context"
	"testing"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "run-123")
	if got := RunIDFromContext(ctx); got != "run-123" {
		t.Errorf("RunIDFromContext = %q, want %q", got, "run-123")
	}
}

func TestRunIDMissing(t *testing.T) {
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty run ID, got %q", got)
	}
	if got := RunIDFromContext(nil); got != "" { //nolint:staticcheck // nil context is tolerated by design
		t.Errorf("expected empty run ID for nil context, got %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-9")
	}
}
