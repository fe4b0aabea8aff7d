// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"sync"

	errorsfeature "github.com/dalemusser/heard/internal/app/features/errors"
	healthfeature "github.com/dalemusser/heard/internal/app/features/health"
	homefeature "github.com/dalemusser/heard/internal/app/features/home"
	_ "github.com/dalemusser/heard/internal/app/features/home/views"
	logoutfeature "github.com/dalemusser/heard/internal/app/features/logout"
	startfeature "github.com/dalemusser/heard/internal/app/features/start"
	userinfofeature "github.com/dalemusser/heard/internal/app/features/userinfo"
	"github.com/dalemusser/heard/internal/app/resources"
	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	"github.com/dalemusser/heard/internal/app/store/audit"
	loginstore "github.com/dalemusser/heard/internal/app/store/logins"
	orphanstore "github.com/dalemusser/heard/internal/app/store/orphans"
	"github.com/dalemusser/heard/internal/app/system/auditlog"
	"github.com/dalemusser/heard/internal/app/system/auth"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/identity/kratosidp"
	"github.com/dalemusser/heard/internal/app/system/identity/localidp"
	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"github.com/dalemusser/heard/internal/app/system/signin"
	"github.com/dalemusser/heard/internal/app/system/signup"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"github.com/dalemusser/heard/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// background holds what BuildHandler started so Shutdown can stop it.
var background struct {
	mu    sync.Mutex
	stops []func()
}

func onShutdown(stop func()) {
	background.mu.Lock()
	defer background.mu.Unlock()
	background.stops = append(background.stops, stop)
}

// stopBackground runs the registered stop functions, newest first.
func stopBackground() {
	background.mu.Lock()
	stops := background.stops
	background.stops = nil
	background.mu.Unlock()

	for i := len(stops) - 1; i >= 0; i-- {
		stops[i]()
	}
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. heard boots the template engine, picks
// the identity provider, builds the sign-up and sign-in coordinators, starts
// the orphan reconciler, and mounts home, start, logout, userinfo and health.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.HeardMongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	idp, err := newIdentityProvider(appCfg, db, logger)
	if err != nil {
		logger.Error("identity provider init failed", zap.Error(err))
		return nil, err
	}

	// Stores and cross-cutting services.
	errLog := errorsfeature.NewErrorLogger(logger)
	audits := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: appCfg.AuditLogAuth})
	accounts := accountstore.New(db, logger)
	orphans := orphanstore.New(db)

	limiter := ratelimit.NewSignInLimiterWithConfig(
		appCfg.SignInIPLimit, appCfg.SignInIPWindow,
		appCfg.SignInAccountLimit, appCfg.SignInAccountWindow)
	onShutdown(limiter.Stop)

	if appCfg.OrphanReconcileInterval > 0 {
		reconciler := workers.NewOrphanReconciler(orphans, idp, audits, logger, appCfg.OrphanReconcileInterval)
		reconciler.Start()
		onShutdown(reconciler.Stop)
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.HeardMongoClient, idp, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if appCfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// Session identity as JSON for scripts and other clients
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	// Static assets embedded in the binary
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(resources.Static()))))

	// Everything that renders a form goes through CSRF protection.
	r.Group(func(pr chi.Router) {
		pr.Use(csrfMiddleware(appCfg.SessionKey, secure, errLog)...)

		homeHandler := homefeature.NewHandler(sessionMgr, logger)
		pr.Mount("/", homefeature.Routes(homeHandler))

		startHandler := startfeature.NewHandler(
			sessionMgr,
			errLog,
			audits,
			signup.New(idp, accounts, orphans, audits, logger),
			signin.New(idp, accounts, logger),
			accounts.UsernameTaken,
			limiter,
			loginstore.New(db),
			appCfg.UsernameDebounce,
			logger,
		)
		pr.Mount("/start", startfeature.Routes(startHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, audits, logger)
		pr.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))
	})

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)

	logger.Info("routes mounted",
		zap.String("identity_provider", appCfg.IdentityProvider),
		zap.Bool("metrics", appCfg.MetricsEnabled))
	return r, nil
}

// newIdentityProvider builds the configured identity.Provider and registers
// its cleanup.
func newIdentityProvider(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) (identity.Provider, error) {
	switch appCfg.IdentityProvider {
	case ProviderKratos:
		p, err := kratosidp.New(kratosidp.Options{
			PublicURL: appCfg.KratosPublicURL,
			AdminURL:  appCfg.KratosAdminURL,
			Timeout:   timeouts.Medium(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderLocal, "":
		p := localidp.New(db, logger, localidp.Options{})
		onShutdown(p.Close)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", appCfg.IdentityProvider)
	}
}

// csrfMiddleware returns the gorilla/csrf chain. The token key is derived
// from the session key. Over plain HTTP (dev) requests are marked so the
// TLS-only referer check is skipped.
func csrfMiddleware(sessionKey string, secure bool, errLog *errorsfeature.ErrorLogger) []func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte("csrf:" + sessionKey))
	protect := csrf.Protect(key[:],
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			errLog.LogBadRequest(w, r, "csrf check failed", csrf.FailureReason(r),
				"Your form expired. Please reload the page and try again.", "/start")
		})),
	)
	if secure {
		return []func(http.Handler) http.Handler{protect}
	}
	plaintext := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
	return []func(http.Handler) http.Handler{plaintext, protect}
}
