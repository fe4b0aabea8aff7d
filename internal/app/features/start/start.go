// internal/app/features/start/start.go
package start

import (
	"net/http"

	"github.com/dalemusser/heard/internal/app/system/auth"
	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/navigation"
	"github.com/dalemusser/heard/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

type startData struct {
	viewdata.BaseVM
	Screen Screen
	Return string // where to go after a successful submit
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /start                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeStart renders the start screen. A visitor who already holds a
// session is sent home, or to the page that asked them to sign in.
func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, navigation.ReturnURL(r, "/"), http.StatusSeeOther)
		return
	}

	flashes, form := h.SessionMgr.PopFlashes(w, r)
	screen := screenFrom(query.Get(r, "view"), flashes, form)

	templates.Render(w, r, "start", startData{
		BaseVM: viewdata.NewBaseVM(r, screen.Heading(), "/"),
		Screen: screen,
		Return: navigation.Clean(query.Get(r, navigation.ReturnParam)),
	})
}

// screenFrom rebuilds the screen after a redirect: the flashed message
// becomes the screen's error or success text, saved inputs refill the form.
func screenFrom(view string, flashes []auth.Flash, form map[string]string) Screen {
	s := NewScreen(view)
	if form != nil {
		s = s.WithFields(Fields{
			FirstName:  form["first_name"],
			LastName:   form["last_name"],
			Username:   form["username"],
			Mobile:     form["mobile"],
			Email:      form["email"],
			Identifier: form["identifier"],
		}).WithUsernameStatus(availability.ParseStatus(form["username_status"]))
	}
	for _, f := range flashes {
		if f.Kind == auth.FlashError {
			s = s.WithError(f.Message)
		} else {
			s = s.WithSuccess(f.Message)
		}
	}
	return s
}
