// Package kratosidp implements identity.Provider on top of an Ory Kratos
// deployment using the native (API) self-service flows.
package kratosidp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/heard/internal/app/system/identity"
	kratosclient "github.com/ory/kratos-client-go"
	"go.uber.org/zap"
)

// Options configures the Kratos endpoints.
type Options struct {
	PublicURL string // self-service flows
	AdminURL  string // identity deletion
	Timeout   time.Duration
}

// Provider talks to Kratos. Safe for concurrent use.
type Provider struct {
	public *kratosclient.APIClient
	admin  *kratosclient.APIClient
	log    *zap.Logger
}

// New builds a Provider. Both URLs are required.
func New(opts Options, logger *zap.Logger) (*Provider, error) {
	if opts.PublicURL == "" || opts.AdminURL == "" {
		return nil, errors.New("kratosidp: public and admin URLs are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Provider{
		public: newClient(opts.PublicURL, opts.Timeout),
		admin:  newClient(opts.AdminURL, opts.Timeout),
		log:    logger,
	}, nil
}

func newClient(url string, timeout time.Duration) *kratosclient.APIClient {
	cfg := kratosclient.NewConfiguration()
	cfg.Servers = []kratosclient.ServerConfiguration{{URL: url}}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	cfg.DefaultHeader = map[string]string{"Accept": "application/json"}
	return kratosclient.NewAPIClient(cfg)
}

func (p *Provider) Name() string { return "kratos" }

// CreateAccount runs a native registration flow with the password method.
// The email is the only trait.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	flow, httpResp, err := p.public.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return "", p.fail("create", "registration flow init failed", err, httpResp)
	}

	body := kratosclient.UpdateRegistrationFlowWithPasswordMethod{
		Method:   "password",
		Password: password,
		Traits:   map[string]interface{}{"email": email},
	}
	out, httpResp, err := p.public.FrontendAPI.
		UpdateRegistrationFlow(ctx).
		Flow(flow.GetId()).
		UpdateRegistrationFlowBody(kratosclient.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&body)).
		Execute()
	if err != nil {
		return "", p.fail("create", "registration failed", err, httpResp)
	}

	ident := out.GetIdentity()
	id := ident.GetId()
	if id == "" {
		return "", identity.E("create", identity.CodeOther, errors.New("registration returned no identity"))
	}
	return id, nil
}

// CheckCredential runs a native login flow and returns the Kratos session.
func (p *Provider) CheckCredential(ctx context.Context, email, password string) (identity.Session, error) {
	flow, httpResp, err := p.public.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return identity.Session{}, p.fail("check", "login flow init failed", err, httpResp)
	}

	body := kratosclient.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: email,
		Password:   password,
	}
	out, httpResp, err := p.public.FrontendAPI.
		UpdateLoginFlow(ctx).
		Flow(flow.GetId()).
		UpdateLoginFlowBody(kratosclient.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&body)).
		Execute()
	if err != nil {
		return identity.Session{}, p.fail("check", "login failed", err, httpResp)
	}

	sess := out.GetSession()
	ident := sess.GetIdentity()
	issued := sess.GetIssuedAt()
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	return identity.Session{
		AccountID: ident.GetId(),
		Token:     out.GetSessionToken(),
		IssuedAt:  issued,
	}, nil
}

// DeleteAccount removes an identity through the admin API. A missing
// identity counts as deleted.
func (p *Provider) DeleteAccount(ctx context.Context, accountID string) error {
	httpResp, err := p.admin.IdentityAPI.DeleteIdentity(ctx, accountID).Execute()
	if err != nil {
		if httpResp != nil && httpResp.StatusCode == http.StatusNotFound {
			return nil
		}
		return p.fail("delete", "delete identity failed", err, httpResp)
	}
	return nil
}

// Ping asks the admin API for its version.
func (p *Provider) Ping(ctx context.Context) error {
	_, httpResp, err := p.admin.MetadataAPI.GetVersion(ctx).Execute()
	if err != nil {
		return p.fail("ping", "version check failed", err, httpResp)
	}
	return nil
}

func (p *Provider) fail(op, msg string, err error, httpResp *http.Response) error {
	ie := classify(op, err, httpResp)
	p.log.Warn("kratos: "+msg,
		zap.String("code", ie.Code.String()),
		zap.Int("http_status", status(httpResp)),
		zap.Error(err))
	return ie
}

func status(r *http.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

// classify maps a kratos-client error to an identity error. A nil response
// means the request never completed.
func classify(op string, err error, httpResp *http.Response) *identity.Error {
	if httpResp == nil {
		return identity.E(op, identity.CodeNetworkFailure, err)
	}
	switch httpResp.StatusCode {
	case http.StatusConflict:
		return identity.E(op, identity.CodeEmailInUse, err)
	case http.StatusTooManyRequests:
		return identity.E(op, identity.CodeTooManyRequests, err)
	}

	var apiErr *kratosclient.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		if code, ok := classifyBody(apiErr.Body()); ok {
			return identity.E(op, code, err)
		}
	}
	if httpResp.StatusCode >= 500 {
		return identity.E(op, identity.CodeOther, fmt.Errorf("kratos status %d: %w", httpResp.StatusCode, err))
	}
	return identity.E(op, identity.CodeOther, err)
}

var _ identity.Provider = (*Provider)(nil)
