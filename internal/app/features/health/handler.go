package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	IdP    identity.Provider
	Log    *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(client *mongo.Client, idp identity.Provider, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		IdP:    idp,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Identity string `json:"identity"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "identity":"connected" }
//
// If either backend fails: 503 with status "error" and the failing side
// marked "disconnected".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Identity: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}

	if h.IdP != nil {
		if err := h.IdP.Ping(ctx); err != nil {
			h.Log.Error("health-check: identity provider ping failed", zap.Error(err))
			resp.Identity = "disconnected"
			if resp.Status == "ok" {
				resp.Message = "Identity provider unavailable"
				resp.Error = err.Error()
			}
			resp.Status = "error"
		}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
