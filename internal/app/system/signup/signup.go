// Package signup registers a new account: a credential at the identity
// provider, then the profile and username reservation in one atomic write.
package signup

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	"github.com/dalemusser/heard/internal/app/system/auditlog"
	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/formval"
	"github.com/dalemusser/heard/internal/app/system/htmlsanitize"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"github.com/dalemusser/heard/internal/domain/models"
	"go.uber.org/zap"
)

var (
	// ErrMissingFields: username, email or password is empty.
	ErrMissingFields = errors.New("signup: missing required fields")
	// ErrUsernameTaken: the username is reserved, or its availability is not
	// known to be free.
	ErrUsernameTaken = errors.New("signup: username taken")
	// ErrProfileWrite: the credential was created but the profile could not
	// be stored. The credential has been rolled back or queued for deletion.
	ErrProfileWrite = errors.New("signup: profile write failed")
)

// Message returns the user-facing text for a Register error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Please fill in all required fields"
	case errors.Is(err, ErrUsernameTaken):
		return "Username is already taken"
	default:
		return identity.SignUpMessage(err)
	}
}

// SuccessMessage is shown after a completed registration.
const SuccessMessage = "Account created successfully!"

// Reason returns a short code for metrics and audit records.
func Reason(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrProfileWrite):
		return "profile_write"
	default:
		var ie *identity.Error
		if errors.As(err, &ie) {
			return ie.Code.String()
		}
		return "other"
	}
}

// Form is the sign-up form as posted.
type Form struct {
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
	Username  string `form:"username" validate:"required"`
	Mobile    string `form:"mobile"`
	Email     string `form:"email" validate:"required"`
	Password  string `form:"password" validate:"required"`
}

// Trimmed returns the form with every field except Password trimmed.
func (f Form) Trimmed() Form {
	return Form{
		FirstName: normalize.Name(f.FirstName),
		LastName:  normalize.Name(f.LastName),
		Username:  normalize.Name(f.Username),
		Mobile:    normalize.Mobile(f.Mobile),
		Email:     normalize.Name(f.Email),
		Password:  f.Password,
	}
}

// State of one registration attempt.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCreatingCredential
	StatePersistingProfile
	StateDone
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateCreatingCredential:
		return "creating_credential"
	case StatePersistingProfile:
		return "persisting_profile"
	case StateDone:
		return "done"
	default:
		return "idle"
	}
}

// Accounts is the part of the account store registration needs.
type Accounts interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	CreateAccount(ctx context.Context, acct models.Account, res models.Reservation) error
}

// Orphans records credentials whose rollback failed.
type Orphans interface {
	Record(ctx context.Context, o models.OrphanedCredential) error
}

// Result of a completed registration.
type Result struct {
	AccountID  string
	Username   string // lowercased
	Email      string // lowercased
	RedirectTo string
}

// Coordinator runs registrations. It holds no per-attempt state and is safe
// for concurrent use.
type Coordinator struct {
	idp      identity.Provider
	accounts Accounts
	orphans  Orphans
	audit    *auditlog.Logger
	log      *zap.Logger
	val      *formval.Validator

	// Now stamps created_at. Defaults to time.Now.
	Now func() time.Time
	// OnTransition, if set, observes every state change of every attempt.
	OnTransition func(from, to State)
}

// New returns a Coordinator. audit may be nil.
func New(idp identity.Provider, accounts Accounts, orphans Orphans, audit *auditlog.Logger, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		idp:      idp,
		accounts: accounts,
		orphans:  orphans,
		audit:    audit,
		log:      logger,
		val:      formval.New(),
		Now:      time.Now,
	}
}

type attempt struct {
	c     *Coordinator
	state State
}

func (a *attempt) to(s State) {
	if a.c.OnTransition != nil {
		a.c.OnTransition(a.state, s)
	}
	a.state = s
}

func (a *attempt) fail(err error) (Result, error) {
	a.to(StateIdle)
	metrics.Registrations.WithLabelValues(Reason(err)).Inc()
	return Result{}, err
}

// Register validates form, creates the credential and stores the profile.
// known is the last availability answer the client saw for form.Username;
// anything other than StatusAvailable is rejected before any network call.
func (c *Coordinator) Register(ctx context.Context, form Form, known availability.Status) (Result, error) {
	a := &attempt{c: c}
	form = form.Trimmed()

	// Validating
	a.to(StateValidating)
	if err := c.val.Validate(form); err != nil {
		var ve *formval.ValidationError
		if errors.As(err, &ve) && ve.Missing() {
			return a.fail(ErrMissingFields)
		}
		return a.fail(err)
	}
	if known != availability.StatusAvailable {
		return a.fail(ErrUsernameTaken)
	}
	username := normalize.Username(form.Username)
	email := normalize.Email(form.Email)

	rctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	taken, err := c.accounts.UsernameTaken(rctx, username)
	cancel()
	if err != nil {
		c.log.Error("signup: reservation re-check failed", zap.String("username", username), zap.Error(err))
		return a.fail(fmt.Errorf("re-check username: %w", err))
	}
	if taken {
		return a.fail(ErrUsernameTaken)
	}

	// CreatingCredential
	a.to(StateCreatingCredential)
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	accountID, err := c.idp.CreateAccount(cctx, email, form.Password)
	cancel()
	metrics.ProviderLatency.WithLabelValues(providerName(c.idp), "create").Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Info("signup: credential rejected",
			zap.String("username", username),
			zap.String("code", identity.CodeOf(err).String()),
			zap.Error(err))
		return a.fail(err)
	}

	// PersistingProfile
	a.to(StatePersistingProfile)
	acct := models.Account{
		ID:        accountID,
		FirstName: htmlsanitize.StripTags(form.FirstName),
		LastName:  htmlsanitize.StripTags(form.LastName),
		Username:  username,
		Email:     email,
		Mobile:    htmlsanitize.StripTags(form.Mobile),
		CreatedAt: c.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	res := models.Reservation{Username: username, UID: accountID}

	wctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), c.log, "persist profile")
	err = c.accounts.CreateAccount(wctx, acct, res)
	cancel()
	if err != nil {
		c.log.Error("signup: profile write failed",
			zap.String("account_id", accountID),
			zap.String("username", username),
			zap.Error(err))
		c.compensate(ctx, accountID, email, username, err)
		if errors.Is(err, accountstore.ErrUsernameTaken) {
			return a.fail(ErrUsernameTaken)
		}
		return a.fail(fmt.Errorf("%w: %v", ErrProfileWrite, err))
	}

	a.to(StateDone)
	metrics.Registrations.WithLabelValues("success").Inc()
	c.log.Info("signup: account created",
		zap.String("account_id", accountID),
		zap.String("username", username))
	return Result{
		AccountID:  accountID,
		Username:   username,
		Email:      email,
		RedirectTo: "/",
	}, nil
}

// compensate deletes a credential whose profile could not be written. If the
// provider cannot delete it now, the account is queued for the reconciler.
func (c *Coordinator) compensate(ctx context.Context, accountID, email, username string, cause error) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium())
	defer cancel()

	err := c.idp.DeleteAccount(dctx, accountID)
	if err == nil {
		metrics.Compensations.WithLabelValues("deleted").Inc()
		c.audit.CredentialRolledBack(dctx, accountID, username)
		return
	}

	metrics.Compensations.WithLabelValues("orphaned").Inc()
	c.log.Error("signup: credential rollback failed; queued for reconciliation",
		zap.String("account_id", accountID),
		zap.Error(err))
	c.audit.CredentialOrphaned(dctx, accountID, username, cause.Error())
	if c.orphans == nil {
		return
	}
	if rerr := c.orphans.Record(dctx, models.OrphanedCredential{
		AccountID: accountID,
		Email:     email,
		Username:  username,
		Reason:    cause.Error(),
		LastError: err.Error(),
	}); rerr != nil {
		c.log.Error("signup: could not record orphaned credential",
			zap.String("account_id", accountID),
			zap.Error(rerr))
	}
}

// providerName labels metrics by adapter.
func providerName(p identity.Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "other"
}
