// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/heard/internal/app/system/auditlog"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Identity provider choices.
const (
	ProviderLocal  = "local"
	ProviderKratos = "kratos"
)

// appConfigKeys defines the configuration keys for heard.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: HEARD_MONGO_URI, HEARD_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "heard", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "heard-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},

	// Identity provider
	{Name: "identity_provider", Default: ProviderLocal, Desc: "Identity provider: 'local' or 'kratos'"},
	{Name: "kratos_public_url", Default: "", Desc: "Ory Kratos public API URL (e.g., http://localhost:4433)"},
	{Name: "kratos_admin_url", Default: "", Desc: "Ory Kratos admin API URL (e.g., http://localhost:4434)"},

	// Start screen
	{Name: "username_debounce", Default: "500ms", Desc: "Quiet period before a username availability lookup"},

	// Sign-in rate limiting
	{Name: "signin_ip_limit", Default: 10, Desc: "Sign-in attempts allowed per client IP per window"},
	{Name: "signin_ip_window", Default: "1m", Desc: "Window for the per-IP sign-in limit"},
	{Name: "signin_account_limit", Default: 5, Desc: "Sign-in attempts allowed per identifier per window"},
	{Name: "signin_account_window", Default: "5m", Desc: "Window for the per-identifier sign-in limit"},

	// Background work
	{Name: "orphan_reconcile_interval", Default: "1m", Desc: "How often to retry deleting orphaned credentials (0 disables)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: auditlog.All, Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Metrics
	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, HEARD_* for app) and flags,
// merged with precedence: flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "HEARD", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		// Identity provider
		IdentityProvider: appValues.String("identity_provider"),
		KratosPublicURL:  appValues.String("kratos_public_url"),
		KratosAdminURL:   appValues.String("kratos_admin_url"),

		// Start screen
		UsernameDebounce: appValues.Duration("username_debounce", 500*time.Millisecond),

		// Sign-in rate limiting
		SignInIPLimit:       appValues.Int("signin_ip_limit"),
		SignInIPWindow:      appValues.Duration("signin_ip_window", time.Minute),
		SignInAccountLimit:  appValues.Int("signin_account_limit"),
		SignInAccountWindow: appValues.Duration("signin_account_window", 5*time.Minute),

		// Background work
		OrphanReconcileInterval: appValues.Duration("orphan_reconcile_interval", time.Minute),

		// Audit logging
		AuditLogAuth: appValues.String("audit_log_auth"),

		// Metrics
		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	// Store and provider calls read their deadlines from the timeouts
	// package, so overrides must be in place before ConnectDB.
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.IdentityProvider {
	case ProviderLocal:
	case ProviderKratos:
		if appCfg.KratosPublicURL == "" || appCfg.KratosAdminURL == "" {
			return fmt.Errorf("identity_provider=kratos requires kratos_public_url and kratos_admin_url")
		}
	default:
		return fmt.Errorf("identity_provider must be %q or %q, got %q", ProviderLocal, ProviderKratos, appCfg.IdentityProvider)
	}

	if appCfg.SessionKey == "" {
		return fmt.Errorf("session_key must be set")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in production")
	}

	switch appCfg.AuditLogAuth {
	case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
	default:
		return fmt.Errorf("audit_log_auth must be one of all, db, log, off; got %q", appCfg.AuditLogAuth)
	}

	if appCfg.SignInIPLimit <= 0 || appCfg.SignInAccountLimit <= 0 {
		return fmt.Errorf("signin_ip_limit and signin_account_limit must be positive")
	}

	return nil
}
