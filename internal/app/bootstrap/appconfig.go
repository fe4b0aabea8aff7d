// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings like ports, TLS, logging level and CORS; AppConfig
// carries everything specific to heard.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: heard-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Identity provider: "local" (MongoDB + bcrypt) or "kratos"
	IdentityProvider string
	KratosPublicURL  string
	KratosAdminURL   string

	// Start screen
	UsernameDebounce time.Duration // quiet period before a live availability lookup

	// Sign-in rate limiting
	SignInIPLimit       int
	SignInIPWindow      time.Duration
	SignInAccountLimit  int
	SignInAccountWindow time.Duration

	// Background reconciliation of credentials whose rollback failed
	OrphanReconcileInterval time.Duration

	// Audit logging: 'all', 'db', 'log' or 'off'
	AuditLogAuth string

	// Expose Prometheus metrics at /metrics
	MetricsEnabled bool
}
