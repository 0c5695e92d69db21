package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/exstoreapp/exstore/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewVerifierRejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier("short"); err == nil {
		t.Fatal("NewVerifier() expected error for short secret")
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	userID := uuid.New()
	token, err := verifier.Issue(userID, models.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	identity, err := verifier.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if identity.UserID != userID {
		t.Fatalf("UserID = %s, want %s", identity.UserID, userID)
	}
	if !identity.IsAdmin() {
		t.Fatal("IsAdmin() = false, want true")
	}
}

func TestParseRejections(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	other, err := NewVerifier(strings.Repeat("x", 32))
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	expired, err := verifier.Issue(uuid.New(), models.RoleCustomer, -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	wrongKey, err := other.Issue(uuid.New(), models.RoleCustomer, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong signing key", token: wrongKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := verifier.Parse(tt.token); err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	userID := uuid.New()
	token, err := verifier.Issue(userID, models.RoleCustomer, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var seen *Identity
	handler := verifier.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	t.Run("valid token passes identity through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if seen == nil || seen.UserID != userID {
			t.Fatalf("identity = %+v, want user %s", seen, userID)
		}
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	customerToken, err := verifier.Issue(uuid.New(), models.RoleCustomer, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	adminToken, err := verifier.Issue(uuid.New(), models.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	handler := verifier.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "admin allowed", token: adminToken, wantStatus: http.StatusOK},
		{name: "customer forbidden", token: customerToken, wantStatus: http.StatusForbidden},
		{name: "anonymous unauthorized", token: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPut, "/admin/orders/x/status", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
