package localidp_test

import (
	"testing"
	"time"

	credentialstore "github.com/dalemusser/heard/internal/app/store/credentials"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/identity/localidp"
	"github.com/dalemusser/heard/internal/app/system/indexes"
	"github.com/dalemusser/heard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newProvider(t *testing.T) (*localidp.Provider, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	require.NoError(t, indexes.EnsureAll(ctx, db))

	p := localidp.New(db, zap.NewNop(), localidp.Options{
		BcryptCost:    bcrypt.MinCost,
		MaxFailures:   3,
		FailureWindow: time.Minute,
	})
	t.Cleanup(p.Close)
	return p, db
}

func TestProvider_CreateAndCheck(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := p.CreateAccount(ctx, " Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sess, err := p.CheckCredential(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id, sess.AccountID)
	assert.NotEmpty(t, sess.Token)
}

func TestProvider_CreateErrors(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := p.CreateAccount(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     identity.Code
	}{
		{"duplicate", "ADA@example.com", "secret2", identity.CodeEmailInUse},
		{"bad email", "not-an-email", "secret1", identity.CodeInvalidEmail},
		{"short password", "bob@example.com", "12345", identity.CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.CreateAccount(ctx, tt.email, tt.password)
			assert.Equal(t, tt.want, identity.CodeOf(err))
		})
	}
}

func TestProvider_CheckErrors(t *testing.T) {
	p, db := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := p.CreateAccount(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.CheckCredential(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, identity.CodeUserNotFound, identity.CodeOf(err))

	_, err = p.CheckCredential(ctx, "ada@example.com", "wrong!")
	assert.Equal(t, identity.CodeWrongPassword, identity.CodeOf(err))

	require.NoError(t, credentialstore.New(db).SetDisabled(ctx, id, true))
	_, err = p.CheckCredential(ctx, "ada@example.com", "secret1")
	assert.Equal(t, identity.CodeUserDisabled, identity.CodeOf(err))
}

func TestProvider_LocksOutAfterRepeatedFailures(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := p.CreateAccount(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = p.CheckCredential(ctx, "ada@example.com", "wrong!")
		require.Equal(t, identity.CodeWrongPassword, identity.CodeOf(err))
	}

	// Even the right password is refused while locked out.
	_, err = p.CheckCredential(ctx, "ada@example.com", "secret1")
	assert.Equal(t, identity.CodeTooManyRequests, identity.CodeOf(err))
}

func TestProvider_SuccessResetsFailures(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := p.CreateAccount(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _ = p.CheckCredential(ctx, "ada@example.com", "wrong!")
	}
	_, err = p.CheckCredential(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _ = p.CheckCredential(ctx, "ada@example.com", "wrong!")
	}
	_, err = p.CheckCredential(ctx, "ada@example.com", "secret1")
	assert.NoError(t, err)
}

func TestProvider_DeleteAndPing(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := p.CreateAccount(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.DeleteAccount(ctx, id))
	require.NoError(t, p.DeleteAccount(ctx, id))

	_, err = p.CheckCredential(ctx, "ada@example.com", "secret1")
	assert.Equal(t, identity.CodeUserNotFound, identity.CodeOf(err))

	assert.NoError(t, p.Ping(ctx))
}
