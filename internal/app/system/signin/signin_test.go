package signin_test

import (
	"context"
	"errors"
	"testing"

	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/identity/identitytest"
	"github.com/dalemusser/heard/internal/app/system/signin"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/dalemusser/heard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memAccounts struct {
	reservations map[string]models.Reservation
	accounts     map[string]models.Account
	err          error
}

func (m *memAccounts) GetReservation(_ context.Context, username string) (models.Reservation, error) {
	if m.err != nil {
		return models.Reservation{}, m.err
	}
	r, ok := m.reservations[username]
	if !ok {
		return models.Reservation{}, accountstore.ErrNotFound
	}
	return r, nil
}

func (m *memAccounts) GetAccount(_ context.Context, id string) (models.Account, error) {
	if m.err != nil {
		return models.Account{}, m.err
	}
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, accountstore.ErrNotFound
	}
	return a, nil
}

func setup() (*signin.Coordinator, *identitytest.Fake, *memAccounts) {
	idp := identitytest.NewFake()
	id := idp.Seed("a@x.com", "hunter22")
	accts := &memAccounts{
		reservations: map[string]models.Reservation{"alexname": {Username: "alexname", UID: id}},
		accounts:     map[string]models.Account{id: {ID: id, Username: "alexname", Email: "a@x.com"}},
	}
	return signin.New(idp, accts, zap.NewNop()), idp, accts
}

func TestSignIn_Email(t *testing.T) {
	c, idp, _ := setup()

	res, err := c.SignIn(context.Background(), "  a@x.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "/", res.RedirectTo)
	assert.Equal(t, signin.KindEmail, res.Kind)
	assert.Equal(t, "alexname", res.Username)
	assert.NotEmpty(t, res.Session.Token)
	assert.Equal(t, 1, idp.CheckCalls)
}

func TestSignIn_UsernameResolvesToEmail(t *testing.T) {
	c, _, _ := setup()

	res, err := c.SignIn(context.Background(), "AlexName", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, signin.KindUsername, res.Kind)
	assert.Equal(t, res.Session.AccountID, res.AccountID)
}

func TestSignIn_GhostUsernameNeverCallsProvider(t *testing.T) {
	c, idp, _ := setup()

	_, err := c.SignIn(context.Background(), "ghost", "whatever")
	require.ErrorIs(t, err, signin.ErrUsernameNotFound)
	assert.Equal(t, "Username not found", signin.Message(err))
	assert.Zero(t, idp.CheckCalls)
}

func TestSignIn_ReservationWithoutAccount(t *testing.T) {
	c, idp, accts := setup()
	accts.reservations["orphan"] = models.Reservation{Username: "orphan", UID: "missing"}

	_, err := c.SignIn(context.Background(), "orphan", "whatever")
	require.ErrorIs(t, err, signin.ErrAccountRecordMissing)
	assert.Equal(t, "User account not found", signin.Message(err))
	assert.Zero(t, idp.CheckCalls)
}

func TestSignIn_LookupFailure(t *testing.T) {
	c, idp, accts := setup()
	accts.err = errors.New("store down")

	_, err := c.SignIn(context.Background(), "alexname", "hunter22")
	require.ErrorIs(t, err, signin.ErrLookupFailed)
	assert.Equal(t, "Error processing request", signin.Message(err))
	assert.Zero(t, idp.CheckCalls)
}

func TestSignIn_MissingFields(t *testing.T) {
	c, idp, _ := setup()

	for _, tc := range [][2]string{{"", "pw"}, {"  ", "pw"}, {"a@x.com", ""}} {
		_, err := c.SignIn(context.Background(), tc[0], tc[1])
		assert.ErrorIs(t, err, signin.ErrMissingFields)
	}
	assert.Zero(t, idp.CheckCalls)
}

func TestSignIn_WrongPassword(t *testing.T) {
	c, _, _ := setup()

	_, err := c.SignIn(context.Background(), "alexname", "nope")
	require.Error(t, err)
	assert.Equal(t, identity.CodeWrongPassword, identity.CodeOf(err))
	assert.Equal(t, "Invalid username/email or password", signin.Message(err))
}

func TestSignIn_ProviderErrorMessages(t *testing.T) {
	tests := []struct {
		code identity.Code
		want string
	}{
		{identity.CodeInvalidCredential, "Invalid username/email or password"},
		{identity.CodeUserNotFound, "Invalid username/email or password"},
		{identity.CodeUserDisabled, "This account has been disabled"},
		{identity.CodeTooManyRequests, "Too many failed attempts. Please try again later"},
		{identity.CodeNetworkFailure, "Network error. Please check your connection"},
		{identity.CodeInvalidEmail, "Failed to sign in. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			c, idp, _ := setup()
			idp.CheckErr = identity.E("check", tt.code, nil)

			_, err := c.SignIn(context.Background(), "a@x.com", "hunter22")
			require.Error(t, err)
			assert.Equal(t, tt.want, signin.Message(err))
			assert.Equal(t, tt.code.String(), signin.Reason(err))
		})
	}
}

// Username resolution against the real store.
func TestSignIn_WithStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := accountstore.New(db, zap.NewNop())
	idp := identitytest.NewFake()
	id := idp.Seed("a@x.com", "hunter22")
	require.NoError(t, store.CreateAccount(ctx,
		models.Account{ID: id, Username: "alexname", Email: "a@x.com"},
		models.Reservation{Username: "alexname", UID: id}))

	c := signin.New(idp, store, zap.NewNop())

	res, err := c.SignIn(ctx, "alexname", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, id, res.AccountID)

	_, err = c.SignIn(ctx, "ghost", "hunter22")
	assert.ErrorIs(t, err, signin.ErrUsernameNotFound)
	assert.Equal(t, 1, idp.CheckCalls)
}
