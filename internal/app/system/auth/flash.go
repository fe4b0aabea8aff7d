package auth

import (
	"net/http"

	"go.uber.org/zap"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    string
	Message string
}

// AddFlash queues a message for the next page render. If form is non-nil
// its values are kept so that page can repopulate its inputs. Never put
// passwords in form.
func (sm *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, msg string, form map[string]string) {
	sess := sm.session(r)
	sess.AddFlash(Flash{Kind: kind, Message: msg})
	if form != nil {
		sess.Values[formKey] = form
	}
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("save flash failed", zap.Error(err))
	}
}

// PopFlashes returns and clears queued messages and saved form values.
func (sm *SessionManager) PopFlashes(w http.ResponseWriter, r *http.Request) ([]Flash, map[string]string) {
	sess := sm.session(r)
	raw := sess.Flashes()
	form, hasForm := sess.Values[formKey].(map[string]string)
	if len(raw) == 0 && !hasForm {
		return nil, nil
	}
	delete(sess.Values, formKey)

	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("clear flashes failed", zap.Error(err))
	}
	return flashes, form
}
