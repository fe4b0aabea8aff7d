// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/heard/internal/app/store/audit"
	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Destination settings for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls sign-up, sign-in and sign-out events.
	Auth string
	// Security controls credential rollback and orphan events. Empty means All.
	Security string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil *Logger is a valid no-op logger.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if event.Identifier != "" {
		fields = append(fields, zap.String("identifier", event.Identifier))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategorySecurity:
		s = l.config.Security
	}
	if s == "" {
		return All
	}
	return s
}

// Log records an audit event according to the category's setting.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func fromRequest(r *http.Request, e audit.Event) audit.Event {
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authentication events                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SignUpSucceeded logs a completed registration.
func (l *Logger) SignUpSucceeded(ctx context.Context, r *http.Request, accountID, username string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:   audit.CategoryAuth,
		EventType:  audit.EventSignUpSuccess,
		AccountID:  accountID,
		Identifier: username,
		Success:    true,
	}))
}

// SignUpFailed logs a rejected registration. reason is a short code.
func (l *Logger) SignUpFailed(ctx context.Context, r *http.Request, username, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventSignUpFailed,
		Identifier:    username,
		FailureReason: reason,
	}))
}

// SignInSucceeded logs a successful sign-in. method is "email" or "username".
func (l *Logger) SignInSucceeded(ctx context.Context, r *http.Request, accountID, identifier, method string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:   audit.CategoryAuth,
		EventType:  audit.EventSignInSuccess,
		AccountID:  accountID,
		Identifier: identifier,
		Success:    true,
		Details:    map[string]string{"method": method},
	}))
}

// SignInFailed logs a failed sign-in. A username that resolves to no
// reservation is recorded under its own event type.
func (l *Logger) SignInFailed(ctx context.Context, r *http.Request, identifier, reason string) {
	eventType := audit.EventSignInFailed
	if reason == "username_not_found" {
		eventType = audit.EventSignInUsernameNotFound
	}
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		Identifier:    identifier,
		FailureReason: reason,
	}))
}

// SignInRateLimited logs a sign-in rejected by the limiter.
func (l *Logger) SignInRateLimited(ctx context.Context, r *http.Request, identifier string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventSignInRateLimited,
		Identifier:    identifier,
		FailureReason: "rate_limited",
	}))
}

// SignedOut logs a sign-out.
func (l *Logger) SignedOut(ctx context.Context, r *http.Request, accountID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignOut,
		AccountID: accountID,
		Success:   true,
	}))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Security events                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// CredentialRolledBack logs a provider account deleted after its profile
// write failed.
func (l *Logger) CredentialRolledBack(ctx context.Context, accountID, username string) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategorySecurity,
		EventType:  audit.EventCredentialRolledBack,
		AccountID:  accountID,
		Identifier: username,
		Success:    true,
	})
}

// CredentialOrphaned logs a provider account left behind because rollback failed.
func (l *Logger) CredentialOrphaned(ctx context.Context, accountID, username, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventCredentialOrphaned,
		AccountID:     accountID,
		Identifier:    username,
		FailureReason: reason,
	})
}

// OrphanReconciled logs an orphaned provider account finally deleted.
func (l *Logger) OrphanReconciled(ctx context.Context, accountID string, attempts int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		EventType: audit.EventOrphanReconciled,
		AccountID: accountID,
		Success:   true,
		Details:   map[string]string{"attempts": strconv.Itoa(attempts)},
	})
}
