// Package signin signs a user in by email or by username.
//
// A username is resolved to an email through the usernames reservation and
// the users profile before the identity provider is asked to check the
// password.
package signin

import (
	"context"
	"errors"
	"time"

	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"github.com/dalemusser/heard/internal/domain/models"
	"go.uber.org/zap"
)

var (
	ErrMissingFields        = errors.New("signin: missing identifier or password")
	ErrUsernameNotFound     = errors.New("signin: username not found")
	ErrAccountRecordMissing = errors.New("signin: reservation points at missing account")
	ErrLookupFailed         = errors.New("signin: username lookup failed")
)

// Identifier kinds.
const (
	KindEmail    = "email"
	KindUsername = "username"
)

// SuccessMessage is shown after a successful sign-in.
const SuccessMessage = "Successfully signed in!"

// Message returns the user-facing text for a SignIn error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Please fill in all required fields"
	case errors.Is(err, ErrUsernameNotFound):
		return "Username not found"
	case errors.Is(err, ErrAccountRecordMissing):
		return "User account not found"
	case errors.Is(err, ErrLookupFailed):
		return "Error processing request"
	default:
		return identity.SignInMessage(err)
	}
}

// Reason returns a short code for metrics and audit records.
func Reason(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrUsernameNotFound):
		return "username_not_found"
	case errors.Is(err, ErrAccountRecordMissing):
		return "account_record_missing"
	case errors.Is(err, ErrLookupFailed):
		return "lookup_failed"
	default:
		var ie *identity.Error
		if errors.As(err, &ie) {
			return ie.Code.String()
		}
		return "other"
	}
}

// Kind classifies a trimmed identifier.
func Kind(identifier string) string {
	if normalize.IsEmail(identifier) {
		return KindEmail
	}
	return KindUsername
}

// Accounts is the part of the account store sign-in needs.
type Accounts interface {
	GetReservation(ctx context.Context, username string) (models.Reservation, error)
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
}

// Result of a successful sign-in.
type Result struct {
	AccountID  string
	Email      string
	Username   string // empty if no profile exists for the account
	Kind       string // KindEmail or KindUsername
	Session    identity.Session
	RedirectTo string
}

// Coordinator runs sign-ins. Safe for concurrent use.
type Coordinator struct {
	idp      identity.Provider
	accounts Accounts
	log      *zap.Logger
}

func New(idp identity.Provider, accounts Accounts, logger *zap.Logger) *Coordinator {
	return &Coordinator{idp: idp, accounts: accounts, log: logger}
}

// SignIn checks identifier/password. An identifier containing "@" is an
// email; anything else is a username resolved through the store first. An
// unknown username fails without contacting the identity provider.
func (c *Coordinator) SignIn(ctx context.Context, identifier, password string) (Result, error) {
	identifier = normalize.Identifier(identifier)
	kind := Kind(identifier)
	res, err := c.signIn(ctx, identifier, kind, password)
	metrics.SignIns.WithLabelValues(Reason(err), kind).Inc()
	return res, err
}

func (c *Coordinator) signIn(ctx context.Context, identifier, kind, password string) (Result, error) {
	if identifier == "" || password == "" {
		return Result{}, ErrMissingFields
	}

	res := Result{Kind: kind, RedirectTo: "/"}
	if kind == KindEmail {
		res.Email = normalize.Email(identifier)
	} else {
		acct, err := c.resolve(ctx, identifier)
		if err != nil {
			return Result{}, err
		}
		res.Email = acct.Email
		res.Username = acct.Username
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	sess, err := c.idp.CheckCredential(cctx, res.Email, password)
	cancel()
	metrics.ProviderLatency.WithLabelValues(providerName(c.idp), "check").Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Info("signin: credential rejected",
			zap.String("kind", kind),
			zap.String("code", identity.CodeOf(err).String()))
		return Result{}, err
	}
	res.AccountID = sess.AccountID
	res.Session = sess

	if res.Username == "" {
		// Best effort: fill the username for the session display.
		gctx, cancel := context.WithTimeout(ctx, timeouts.Short())
		if acct, err := c.accounts.GetAccount(gctx, sess.AccountID); err == nil {
			res.Username = acct.Username
		} else if !errors.Is(err, accountstore.ErrNotFound) {
			c.log.Warn("signin: profile lookup failed", zap.String("account_id", sess.AccountID), zap.Error(err))
		}
		cancel()
	}
	return res, nil
}

// resolve maps a username to its account profile.
func (c *Coordinator) resolve(ctx context.Context, username string) (models.Account, error) {
	key := normalize.Username(username)
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	reservation, err := c.accounts.GetReservation(ctx, key)
	if errors.Is(err, accountstore.ErrNotFound) {
		return models.Account{}, ErrUsernameNotFound
	}
	if err != nil {
		c.log.Error("signin: reservation lookup failed", zap.String("username", key), zap.Error(err))
		return models.Account{}, ErrLookupFailed
	}

	acct, err := c.accounts.GetAccount(ctx, reservation.UID)
	if errors.Is(err, accountstore.ErrNotFound) {
		c.log.Warn("signin: reservation without account",
			zap.String("username", key),
			zap.String("account_id", reservation.UID))
		return models.Account{}, ErrAccountRecordMissing
	}
	if err != nil {
		c.log.Error("signin: account lookup failed", zap.String("account_id", reservation.UID), zap.Error(err))
		return models.Account{}, ErrLookupFailed
	}
	return acct, nil
}

func providerName(p identity.Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "other"
}
