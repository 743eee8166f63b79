package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func serveRequestID(t *testing.T, incoming string) (captured string, header string) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	if incoming != "" {
		req.Header.Set(chimiddleware.RequestIDHeader, incoming)
	}
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = chimiddleware.GetReqID(r.Context())
	}))
	h.ServeHTTP(rec, req)
	return captured, rec.Header().Get(chimiddleware.RequestIDHeader)
}

func TestRequestIDGeneratesUUIDv4(t *testing.T) {
	captured, header := serveRequestID(t, "")

	if captured == "" {
		t.Fatalf("expected generated request ID")
	}
	if header != captured {
		t.Fatalf("expected response header %q, got %q", captured, header)
	}
	parsed, err := uuid.Parse(captured)
	if err != nil {
		t.Fatalf("request ID %q is not a valid UUID: %v", captured, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected UUIDv4, got version %d", parsed.Version())
	}
}

func TestRequestIDPreservesIncomingHeader(t *testing.T) {
	captured, header := serveRequestID(t, "external-id")

	if captured != "external-id" {
		t.Fatalf("expected request ID to remain external-id, got %q", captured)
	}
	if header != "external-id" {
		t.Fatalf("expected header external-id, got %q", header)
	}
}

func TestRequestIDReplacesUnsafeHeaders(t *testing.T) {
	tests := []struct {
		name    string
		inputID string
	}{
		{"newline", "valid\ninjected-line"},
		{"carriage return", "valid\rinjected"},
		{"null byte", "valid\x00null"},
		{"DEL character", "valid\x7Fdel"},
		{"high byte", "valid\x80high"},
		{"too long", strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured, _ := serveRequestID(t, tt.inputID)
			if captured == tt.inputID {
				t.Fatalf("expected a replacement ID, got the original %q", captured)
			}
			if _, err := uuid.Parse(captured); err != nil {
				t.Fatalf("expected valid UUID, got %q: %v", captured, err)
			}
		})
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"", false},
		{"a", true},
		{"ABC-xyz_123.456", true},
		{strings.Repeat("a", maxRequestIDLength), true},
		{strings.Repeat("a", maxRequestIDLength+1), false},
		{"hello\tworld", false},
		{"hello\x1fworld", false},
		{" spaced id ", true},
		{"special!@#$%^&*()", true},
	}

	for _, tt := range tests {
		if got := validRequestID(tt.id); got != tt.valid {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}
