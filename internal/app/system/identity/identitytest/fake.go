// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/heard/internal/app/system/identity"
)

// Fake is an in-memory Provider. Set the *Err fields to force failures.
// Call counters let tests assert that the provider was never reached.
type Fake struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount // by email
	nextID   int

	CreateErr error
	CheckErr  error
	DeleteErr error
	PingErr   error

	CreateCalls int
	CheckCalls  int
	DeleteCalls int
	Deleted     []string
}

type fakeAccount struct {
	id       string
	password string
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{accounts: make(map[string]fakeAccount)}
}

// Seed adds an account directly and returns its id.
func (f *Fake) Seed(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(email, password)
}

func (f *Fake) add(email, password string) string {
	f.nextID++
	id := fmt.Sprintf("acct-%d", f.nextID)
	f.accounts[strings.ToLower(email)] = fakeAccount{id: id, password: password}
	return id
}

func (f *Fake) CreateAccount(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if _, ok := f.accounts[strings.ToLower(email)]; ok {
		return "", identity.E("create", identity.CodeEmailInUse, nil)
	}
	return f.add(email, password), nil
}

func (f *Fake) CheckCredential(_ context.Context, email, password string) (identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	if f.CheckErr != nil {
		return identity.Session{}, f.CheckErr
	}
	a, ok := f.accounts[strings.ToLower(email)]
	if !ok {
		return identity.Session{}, identity.E("check", identity.CodeUserNotFound, nil)
	}
	if a.password != password {
		return identity.Session{}, identity.E("check", identity.CodeWrongPassword, nil)
	}
	return identity.Session{AccountID: a.id, Token: "tok-" + a.id, IssuedAt: time.Now().UTC()}, nil
}

func (f *Fake) DeleteAccount(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for email, a := range f.accounts {
		if a.id == accountID {
			delete(f.accounts, email)
		}
	}
	f.Deleted = append(f.Deleted, accountID)
	return nil
}

func (f *Fake) Ping(context.Context) error { return f.PingErr }

func (f *Fake) Name() string { return "fake" }

// Has reports whether an account with accountID currently exists.
func (f *Fake) Has(accountID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.id == accountID {
			return true
		}
	}
	return false
}

var _ identity.Provider = (*Fake)(nil)
