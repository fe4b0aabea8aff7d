// internal/app/features/start/handler.go
package start

import (
	"time"

	uierrors "github.com/dalemusser/heard/internal/app/features/errors"
	loginstore "github.com/dalemusser/heard/internal/app/store/logins"
	"github.com/dalemusser/heard/internal/app/system/auditlog"
	"github.com/dalemusser/heard/internal/app/system/auth"
	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"github.com/dalemusser/heard/internal/app/system/signin"
	"github.com/dalemusser/heard/internal/app/system/signup"
	"go.uber.org/zap"
)

// Handler serves the start screen: username availability, sign-up and
// sign-in.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	SignUp     *signup.Coordinator
	SignIn     *signin.Coordinator
	Lookup     availability.Lookup
	Limiter    *ratelimit.SignInLimiter
	Logins     *loginstore.Store // optional

	// QuietPeriod is the live checker's debounce; zero means the default.
	QuietPeriod time.Duration
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	signUp *signup.Coordinator,
	signIn *signin.Coordinator,
	lookup availability.Lookup,
	limiter *ratelimit.SignInLimiter,
	logins *loginstore.Store,
	quietPeriod time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:         logger,
		SessionMgr:  sessionMgr,
		ErrLog:      errLog,
		AuditLog:    audit,
		SignUp:      signUp,
		SignIn:      signIn,
		Lookup:      lookup,
		Limiter:     limiter,
		Logins:      logins,
		QuietPeriod: quietPeriod,
	}
}
