// internal/app/features/start/routes.go
package start

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeStart)
	r.Get("/username", h.ServeUsername)
	r.Get("/username/live", h.ServeLive)
	r.Post("/signup", h.HandleSignUp)
	r.Post("/signin", h.HandleSignIn)
	return r
}
