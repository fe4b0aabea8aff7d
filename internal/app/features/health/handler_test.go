package health_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/heard/internal/app/features/health"
	"github.com/dalemusser/heard/internal/app/system/identity/identitytest"
	"github.com/dalemusser/heard/internal/testutil"
	"go.uber.org/zap"
)

type response struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, resp
}

func TestServe_AllConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := health.NewHandler(db.Client(), identitytest.NewFake(), zap.NewNop())

	rec, resp := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if resp.Status != "ok" || resp.Database != "connected" || resp.Identity != "connected" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestServe_IdentityProviderDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	idp := identitytest.NewFake()
	idp.PingErr = errors.New("connection refused")
	h := health.NewHandler(db.Client(), idp, zap.NewNop())

	rec, resp := serve(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if resp.Status != "error" || resp.Identity != "disconnected" || resp.Database != "connected" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != "Identity provider unavailable" {
		t.Errorf("message = %q", resp.Message)
	}
}
