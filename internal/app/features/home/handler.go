package home

import (
	"net/http"

	"github.com/dalemusser/heard/internal/app/system/auth"
	"github.com/dalemusser/heard/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

type homeData struct {
	viewdata.BaseVM
	Email  string
	Method string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	flashes, _ := h.SessionMgr.PopFlashes(w, r)

	data := homeData{BaseVM: viewdata.NewBaseVM(r, "Welcome", "/").WithFlashes(flashes)}
	if u, ok := auth.CurrentUser(r); ok {
		data.Email = u.Email
		data.Method = u.Method
	}

	templates.Render(w, r, "home", data)
}
