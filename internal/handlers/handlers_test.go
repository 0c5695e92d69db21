package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/exstoreapp/exstore/internal/services"
)

func testHandlers() *Handlers {
	return &Handlers{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	h := testHandlers()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	h.SecurityHeaders(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestWriteServiceErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "validation error",
			err:         &services.ValidationError{Reason: "order must contain at least one item", Fields: []string{"items"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "order must contain at least one item: items",
		},
		{
			name:        "not found",
			err:         services.ErrOrderNotFound,
			wantStatus:  http.StatusNotFound,
			wantMessage: "order not found",
		},
		{
			name:        "wrapped not found",
			err:         errors.Join(errors.New("lookup"), services.ErrOrderNotFound),
			wantStatus:  http.StatusNotFound,
			wantMessage: "order not found",
		},
		{
			name:        "conflict",
			err:         &services.ConflictError{Reason: "order is already paid"},
			wantStatus:  http.StatusConflict,
			wantMessage: "order is already paid",
		},
		{
			name:        "payment declined",
			err:         services.ErrPaymentDeclined,
			wantStatus:  http.StatusPaymentRequired,
			wantMessage: "payment declined",
		},
		{
			name:        "unknown error is masked",
			err:         errors.New("pq: connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := testHandlers()
			rec := httptest.NewRecorder()
			h.writeServiceError(context.Background(), rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body response
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
			}
			if body.Success {
				t.Error("expected success=false")
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}

func TestDecodeJSONRejectsUnknownFieldsAndOversizedBodies(t *testing.T) {
	t.Parallel()

	h := testHandlers()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"bogus": 1}`))
	var dst struct {
		Known string `json:"known"`
	}
	if err := h.decodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Error("expected unknown field to be rejected")
	}

	huge := strings.NewReader(`{"known": "` + strings.Repeat("x", maxBodyBytes+1) + `"}`)
	req = httptest.NewRequest(http.MethodPost, "/orders", huge)
	if err := h.decodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Error("expected oversized body to be rejected")
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	t.Parallel()

	h := testHandlers()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	h.RequestLogger(next).ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec = httptest.NewRecorder()
	h.RequestLogger(next).ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("request id = %q, want the client-supplied one", got)
	}
}
