package userinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/heard/internal/app/features/userinfo"
	"github.com/dalemusser/heard/internal/app/system/auth"
)

func newTestHandler(t *testing.T) *userinfo.Handler {
	t.Helper()
	return userinfo.NewHandler()
}

func TestNewHandler(t *testing.T) {
	h := newTestHandler(t)
	if h == nil {
		t.Fatal("NewHandler() returned nil")
	}
}

func TestServeUserInfo_Unauthenticated(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/userinfo", nil)
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	// Check Content-Type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}

	// Parse response JSON
	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}

	// Verify unauthenticated response
	if isAuth, ok := response["isAuthenticated"].(bool); !ok || isAuth {
		t.Errorf("isAuthenticated: got %v, want false", response["isAuthenticated"])
	}
	for _, key := range []string{"username", "email", "method"} {
		if v, ok := response[key].(string); !ok || v != "" {
			t.Errorf("%s: got %q, want empty string", key, response[key])
		}
	}
}

func TestServeUserInfo_Authenticated(t *testing.T) {
	handler := newTestHandler(t)

	sessionUser := &auth.SessionUser{
		AccountID: "acct-1",
		Username:  "ada",
		Email:     "ada@example.com",
		Method:    "username",
	}

	req := httptest.NewRequest("GET", "/api/userinfo", nil)
	req = auth.WithTestUser(req, sessionUser)
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	// Parse response JSON
	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}

	// Verify authenticated response
	if isAuth, ok := response["isAuthenticated"].(bool); !ok || !isAuth {
		t.Errorf("isAuthenticated: got %v, want true", response["isAuthenticated"])
	}
	if username, ok := response["username"].(string); !ok || username != "ada" {
		t.Errorf("username: got %q, want %q", response["username"], "ada")
	}
	if email, ok := response["email"].(string); !ok || email != "ada@example.com" {
		t.Errorf("email: got %q, want %q", response["email"], "ada@example.com")
	}
	if method, ok := response["method"].(string); !ok || method != "username" {
		t.Errorf("method: got %q, want %q", response["method"], "username")
	}
}

func TestServeUserInfo_ReturnsJSON(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/userinfo", nil)
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	// Verify the response is valid JSON
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}

	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Errorf("response body is not valid JSON: %v", err)
	}
}
