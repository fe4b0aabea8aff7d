// internal/app/features/start/submit.go
package start

import (
	"context"
	"net/http"

	"github.com/dalemusser/heard/internal/app/system/auth"
	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/limits"
	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/app/system/navigation"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"github.com/dalemusser/heard/internal/app/system/signin"
	"github.com/dalemusser/heard/internal/app/system/signup"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"go.uber.org/zap"
)

const (
	signUpURL = "/start"
	signInURL = "/start?view=signin"
)

/*─────────────────────────────────────────────────────────────────────────────*
| POST /start/signup                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxStartFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", signUpURL)
		return
	}
	ret := navigation.ReturnURL(r, "")

	form := signup.Form{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Username:  r.PostFormValue("username"),
		Mobile:    r.PostFormValue("mobile"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
	}
	known := h.knownStatus(r, form.Username)

	res, err := h.SignUp.Register(r.Context(), form, known)
	if err != nil {
		h.AuditLog.SignUpFailed(r.Context(), r, normalize.Username(form.Username), signup.Reason(err))
		trimmed := form.Trimmed()
		h.SessionMgr.AddFlash(w, r, auth.FlashError, signup.Message(err), map[string]string{
			"first_name":      trimmed.FirstName,
			"last_name":       trimmed.LastName,
			"username":        trimmed.Username,
			"mobile":          trimmed.Mobile,
			"email":           trimmed.Email,
			"username_status": known.String(),
		})
		http.Redirect(w, r, navigation.WithReturn(signUpURL, ret), http.StatusSeeOther)
		return
	}

	h.AuditLog.SignUpSucceeded(r.Context(), r, res.AccountID, res.Username)
	h.startSession(w, r, auth.SessionUser{
		AccountID: res.AccountID,
		Username:  res.Username,
		Email:     res.Email,
		Method:    "signup",
	})
	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, signup.SuccessMessage, nil)
	http.Redirect(w, r, orDefault(ret, res.RedirectTo), http.StatusSeeOther)
}

// knownStatus is the availability the browser last saw for the username.
// A form posted without a settled answer (no script, or a check still in
// flight) is settled here with one lookup.
func (h *Handler) knownStatus(r *http.Request, username string) availability.Status {
	known := availability.ParseStatus(r.PostFormValue("username_status"))
	if known == availability.StatusAvailable || known == availability.StatusTaken {
		return known
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	st, err := availability.Check(ctx, h.Lookup, username)
	if err != nil {
		h.Log.Warn("signup: availability lookup failed", zap.Error(err))
	}
	return st
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /start/signin                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxStartFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", signInURL)
		return
	}
	ret := navigation.ReturnURL(r, "")
	failed := navigation.WithReturn(signInURL, ret)

	identifier := normalize.Identifier(r.PostFormValue("identifier"))
	password := r.PostFormValue("password")
	keep := map[string]string{"identifier": identifier}

	if h.Limiter != nil && !h.Limiter.Allow(ratelimit.ClientIP(r), identifier) {
		h.AuditLog.SignInRateLimited(r.Context(), r, identifier)
		metrics.SignIns.WithLabelValues("rate_limited", signin.Kind(identifier)).Inc()
		msg := identity.SignInMessage(identity.E("check", identity.CodeTooManyRequests, nil))
		h.SessionMgr.AddFlash(w, r, auth.FlashError, msg, keep)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	res, err := h.SignIn.SignIn(r.Context(), identifier, password)
	if err != nil {
		h.AuditLog.SignInFailed(r.Context(), r, identifier, signin.Reason(err))
		h.SessionMgr.AddFlash(w, r, auth.FlashError, signin.Message(err), keep)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	if h.Limiter != nil {
		h.Limiter.Succeeded(identifier)
	}
	h.AuditLog.SignInSucceeded(r.Context(), r, res.AccountID, identifier, res.Kind)
	h.startSession(w, r, auth.SessionUser{
		AccountID: res.AccountID,
		Username:  res.Username,
		Email:     res.Email,
		Method:    res.Kind,
		Token:     res.Session.Token,
	})
	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, signin.SuccessMessage, nil)
	http.Redirect(w, r, orDefault(ret, res.RedirectTo), http.StatusSeeOther)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// startSession stores u in the cookie session and records the login. A
// failed login record is logged and otherwise ignored.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u auth.SessionUser) {
	if err := h.SessionMgr.SignIn(w, r, u); err != nil {
		h.Log.Error("save session failed", zap.String("account_id", u.AccountID), zap.Error(err))
	}
	if h.Logins == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.Logins.CreateFrom(ctx, r, u.AccountID, u.Method); err != nil {
		h.Log.Warn("record login failed", zap.String("account_id", u.AccountID), zap.Error(err))
	}
}
