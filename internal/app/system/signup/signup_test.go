package signup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/identity/identitytest"
	"github.com/dalemusser/heard/internal/app/system/signup"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/dalemusser/heard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memAccounts is an in-memory Accounts with failure injection.
type memAccounts struct {
	mu           sync.Mutex
	reservations map[string]string
	accounts     map[string]models.Account
	lookupErr    error
	createErr    error
	lookups      int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{reservations: map[string]string{}, accounts: map[string]models.Account{}}
}

func (m *memAccounts) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	_, ok := m.reservations[username]
	return ok, nil
}

func (m *memAccounts) CreateAccount(_ context.Context, acct models.Account, res models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.reservations[res.Username]; ok {
		return accountstore.ErrUsernameTaken
	}
	m.reservations[res.Username] = res.UID
	m.accounts[acct.ID] = acct
	return nil
}

type memOrphans struct {
	recorded []models.OrphanedCredential
}

func (m *memOrphans) Record(_ context.Context, o models.OrphanedCredential) error {
	m.recorded = append(m.recorded, o)
	return nil
}

func validForm() signup.Form {
	return signup.Form{
		FirstName: "  Ada ",
		LastName:  "<b>Lovelace</b>",
		Username:  " AdaL ",
		Mobile:    " 555-0100 ",
		Email:     " Ada@Example.com ",
		Password:  " secret1 ",
	}
}

type harness struct {
	coord    *signup.Coordinator
	idp      *identitytest.Fake
	accounts *memAccounts
	orphans  *memOrphans
	states   []signup.State
}

func newHarness() *harness {
	h := &harness{
		idp:      identitytest.NewFake(),
		accounts: newMemAccounts(),
		orphans:  &memOrphans{},
	}
	h.coord = signup.New(h.idp, h.accounts, h.orphans, nil, zap.NewNop())
	h.coord.Now = func() time.Time { return time.Date(2024, 6, 15, 10, 30, 0, 0, time.FixedZone("X", 3600)) }
	h.coord.OnTransition = func(_, to signup.State) { h.states = append(h.states, to) }
	return h
}

func TestRegister_Success(t *testing.T) {
	h := newHarness()

	res, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.NoError(t, err)

	assert.Equal(t, "/", res.RedirectTo)
	assert.Equal(t, "adal", res.Username)
	assert.Equal(t, "ada@example.com", res.Email)

	acct := h.accounts.accounts[res.AccountID]
	assert.Equal(t, models.Account{
		ID:        res.AccountID,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "adal",
		Email:     "ada@example.com",
		Mobile:    "555-0100",
		CreatedAt: "2024-06-15T09:30:00.000Z",
	}, acct)
	assert.Equal(t, res.AccountID, h.accounts.reservations["adal"])

	assert.Equal(t, []signup.State{
		signup.StateValidating,
		signup.StateCreatingCredential,
		signup.StatePersistingProfile,
		signup.StateDone,
	}, h.states)

	// Password is passed through untrimmed.
	_, err = h.idp.CheckCredential(context.Background(), "ada@example.com", " secret1 ")
	assert.NoError(t, err)
}

func TestRegister_MissingFields(t *testing.T) {
	for _, blank := range []string{"username", "email", "password"} {
		t.Run(blank, func(t *testing.T) {
			h := newHarness()
			f := validForm()
			switch blank {
			case "username":
				f.Username = "   "
			case "email":
				f.Email = ""
			case "password":
				f.Password = ""
			}

			_, err := h.coord.Register(context.Background(), f, availability.StatusAvailable)
			require.ErrorIs(t, err, signup.ErrMissingFields)
			assert.Equal(t, "Please fill in all required fields", signup.Message(err))
			assert.Zero(t, h.idp.CreateCalls)
			assert.Zero(t, h.accounts.lookups)
			assert.Equal(t, []signup.State{signup.StateValidating, signup.StateIdle}, h.states)
		})
	}
}

// A username the client already knows is taken is rejected before any network call.
func TestRegister_KnownTakenRejectedBeforeNetwork(t *testing.T) {
	for _, known := range []availability.Status{availability.StatusTaken, availability.StatusUnknown, availability.StatusChecking} {
		t.Run(known.String(), func(t *testing.T) {
			h := newHarness()

			_, err := h.coord.Register(context.Background(), validForm(), known)
			require.ErrorIs(t, err, signup.ErrUsernameTaken)
			assert.Equal(t, "Username is already taken", signup.Message(err))
			assert.Zero(t, h.accounts.lookups)
			assert.Zero(t, h.idp.CreateCalls)
		})
	}
}

func TestRegister_RecheckFindsReservation(t *testing.T) {
	h := newHarness()
	h.accounts.reservations["adal"] = "someone"

	_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.ErrorIs(t, err, signup.ErrUsernameTaken)
	assert.Zero(t, h.idp.CreateCalls)
}

func TestRegister_RecheckError(t *testing.T) {
	h := newHarness()
	h.accounts.lookupErr = errors.New("store down")

	_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.Error(t, err)
	assert.Equal(t, "Failed to create account. Please try again.", signup.Message(err))
	assert.Zero(t, h.idp.CreateCalls)
}

func TestRegister_ProviderErrors(t *testing.T) {
	tests := []struct {
		code identity.Code
		want string
	}{
		{identity.CodeEmailInUse, "Email is already registered"},
		{identity.CodeInvalidEmail, "Invalid email format"},
		{identity.CodeWeakPassword, "Password should be at least 6 characters"},
		{identity.CodeOther, "Failed to create account. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			h := newHarness()
			h.idp.CreateErr = identity.E("create", tt.code, nil)

			_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
			require.Error(t, err)
			assert.Equal(t, tt.want, signup.Message(err))
			assert.Empty(t, h.accounts.accounts)
			assert.Equal(t, signup.StateIdle, h.states[len(h.states)-1])
		})
	}
}

func TestRegister_ProfileWriteFailureRollsBackCredential(t *testing.T) {
	h := newHarness()
	h.accounts.createErr = errors.New("batch failed")

	_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.ErrorIs(t, err, signup.ErrProfileWrite)
	assert.Equal(t, "Failed to create account. Please try again.", signup.Message(err))

	require.Len(t, h.idp.Deleted, 1)
	assert.False(t, h.idp.Has(h.idp.Deleted[0]))
	assert.Empty(t, h.orphans.recorded)
	assert.Empty(t, h.accounts.reservations)
}

func TestRegister_RollbackFailureRecordsOrphan(t *testing.T) {
	h := newHarness()
	h.accounts.createErr = errors.New("batch failed")
	h.idp.DeleteErr = identity.E("delete", identity.CodeNetworkFailure, errors.New("timeout"))

	_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.ErrorIs(t, err, signup.ErrProfileWrite)

	require.Len(t, h.orphans.recorded, 1)
	o := h.orphans.recorded[0]
	assert.Equal(t, "ada@example.com", o.Email)
	assert.Equal(t, "adal", o.Username)
	assert.Contains(t, o.Reason, "batch failed")
}

func TestRegister_LostRaceForUsername(t *testing.T) {
	h := newHarness()
	// Another registration reserves the name between re-check and write.
	h.accounts.createErr = accountstore.ErrUsernameTaken

	_, err := h.coord.Register(context.Background(), validForm(), availability.StatusAvailable)
	require.ErrorIs(t, err, signup.ErrUsernameTaken)
	assert.Equal(t, 1, h.idp.DeleteCalls)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "success", signup.Reason(nil))
	assert.Equal(t, "missing_fields", signup.Reason(signup.ErrMissingFields))
	assert.Equal(t, "email_in_use", signup.Reason(identity.E("create", identity.CodeEmailInUse, nil)))
	assert.Equal(t, "other", signup.Reason(errors.New("x")))
}

// With the real store: a forced batch failure leaves no account, no
// reservation and no credential behind.
func TestRegister_AtomicWithStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := accountstore.New(db, zap.NewNop())
	idp := identitytest.NewFake()
	coord := signup.New(idp, failingCreate{store}, nil, nil, zap.NewNop())

	_, err := coord.Register(ctx, validForm(), availability.StatusAvailable)
	require.ErrorIs(t, err, signup.ErrProfileWrite)

	_, err = store.GetReservation(ctx, "adal")
	assert.ErrorIs(t, err, accountstore.ErrNotFound)
	require.Len(t, idp.Deleted, 1)
	_, err = store.GetAccount(ctx, idp.Deleted[0])
	assert.ErrorIs(t, err, accountstore.ErrNotFound)

	// And a normal registration against the same store succeeds.
	coord = signup.New(idp, store, nil, nil, zap.NewNop())
	res, err := coord.Register(ctx, validForm(), availability.StatusAvailable)
	require.NoError(t, err)
	got, err := store.GetReservation(ctx, "adal")
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, got.UID)
}

type failingCreate struct{ *accountstore.Store }

func (failingCreate) CreateAccount(context.Context, models.Account, models.Reservation) error {
	return errors.New("forced batch failure")
}
