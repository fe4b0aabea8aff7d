// Package localidp is a self-hosted identity.Provider backed by the MongoDB
// credentials collection and bcrypt password hashes.
package localidp

import (
	"context"
	"errors"
	"time"

	credentialstore "github.com/dalemusser/heard/internal/app/store/credentials"
	"github.com/dalemusser/heard/internal/app/system/formval"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password CreateAccount accepts.
const MinPasswordLength = 6

// Provider implements identity.Provider.
type Provider struct {
	db       *mongo.Database
	creds    *credentialstore.Store
	val      *formval.Validator
	failures *ratelimit.Limiter
	cost     int
	log      *zap.Logger
}

// Options tunes a Provider. Zero values select defaults.
type Options struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// MaxFailures is the number of failed checks per email allowed inside
	// FailureWindow before CodeTooManyRequests is returned. Default 5 per 15m.
	MaxFailures   int
	FailureWindow time.Duration
}

// New returns a Provider storing credentials in db.
func New(db *mongo.Database, logger *zap.Logger, opts Options) *Provider {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.FailureWindow == 0 {
		opts.FailureWindow = 15 * time.Minute
	}
	return &Provider{
		db:       db,
		creds:    credentialstore.New(db),
		val:      formval.New(),
		failures: ratelimit.New(opts.MaxFailures, opts.FailureWindow),
		cost:     opts.BcryptCost,
		log:      logger,
	}
}

// Name identifies the adapter in metrics.
func (p *Provider) Name() string { return "local" }

// Close stops background work.
func (p *Provider) Close() {
	p.failures.Stop()
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	const op = "create"
	email = normalize.Email(email)
	if !p.val.IsEmail(email) {
		return "", identity.E(op, identity.CodeInvalidEmail, nil)
	}
	if len(password) < MinPasswordLength {
		return "", identity.E(op, identity.CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", identity.E(op, identity.CodeWeakPassword, err)
	}

	id := uuid.NewString()
	err = p.creds.Create(ctx, models.Credential{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
	})
	switch {
	case errors.Is(err, credentialstore.ErrDuplicateEmail):
		return "", identity.E(op, identity.CodeEmailInUse, err)
	case err != nil:
		return "", identity.E(op, classifyStoreErr(err), err)
	}
	p.log.Info("local credential created", zap.String("account_id", id))
	return id, nil
}

func (p *Provider) CheckCredential(ctx context.Context, email, password string) (identity.Session, error) {
	const op = "check"
	email = normalize.Email(email)
	if p.failures.Remaining(email) == 0 {
		return identity.Session{}, identity.E(op, identity.CodeTooManyRequests, nil)
	}

	cred, err := p.creds.GetByEmail(ctx, email)
	if errors.Is(err, credentialstore.ErrNotFound) {
		p.failures.Allow(email)
		return identity.Session{}, identity.E(op, identity.CodeUserNotFound, nil)
	}
	if err != nil {
		return identity.Session{}, identity.E(op, classifyStoreErr(err), err)
	}
	if cred.Disabled {
		return identity.Session{}, identity.E(op, identity.CodeUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		p.failures.Allow(email)
		return identity.Session{}, identity.E(op, identity.CodeWrongPassword, nil)
	}

	p.failures.Reset(email)
	return identity.Session{
		AccountID: cred.ID,
		Token:     uuid.NewString(),
		IssuedAt:  time.Now().UTC(),
	}, nil
}

func (p *Provider) DeleteAccount(ctx context.Context, accountID string) error {
	n, err := p.creds.Delete(ctx, accountID)
	if err != nil {
		return identity.E("delete", classifyStoreErr(err), err)
	}
	if n > 0 {
		p.log.Info("local credential deleted", zap.String("account_id", accountID))
	}
	return nil
}

func (p *Provider) Ping(ctx context.Context) error {
	if err := p.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return identity.E("ping", identity.CodeNetworkFailure, err)
	}
	return nil
}

func classifyStoreErr(err error) identity.Code {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return identity.CodeNetworkFailure
	}
	return identity.CodeOther
}

var _ identity.Provider = (*Provider)(nil)
