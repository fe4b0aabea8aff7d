package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	accountstore "github.com/dalemusser/heard/internal/app/store/accounts"
	orphanstore "github.com/dalemusser/heard/internal/app/store/orphans"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAccount inserts a profile and its username reservation.
func (f *Fixtures) CreateAccount(ctx context.Context, username, email string) models.Account {
	f.t.Helper()

	acct := models.Account{
		ID:        uuid.NewString(),
		FirstName: "Test",
		LastName:  "User",
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	err := accountstore.New(f.db, zap.NewNop()).CreateAccount(ctx, acct,
		models.Reservation{Username: username, UID: acct.ID})
	if err != nil {
		f.t.Fatalf("CreateAccount(%q) failed: %v", username, err)
	}
	return acct
}

// CreateOrphan records an orphaned credential created at createdAt.
func (f *Fixtures) CreateOrphan(ctx context.Context, accountID string, createdAt time.Time) models.OrphanedCredential {
	f.t.Helper()

	o := models.OrphanedCredential{
		AccountID: accountID,
		Email:     accountID + "@example.com",
		Username:  accountID,
		Reason:    "profile write failed",
		CreatedAt: createdAt,
	}
	if err := orphanstore.New(f.db).Record(ctx, o); err != nil {
		f.t.Fatalf("CreateOrphan(%q) failed: %v", accountID, err)
	}
	return o
}

/*─────────────────────────────────────────────────────────────────────────────*
| In-memory account store                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// MemAccounts is an in-memory stand-in for the account store, for handler
// tests that should not need MongoDB. Set Err to fail every call.
type MemAccounts struct {
	mu           sync.Mutex
	reservations map[string]string
	accounts     map[string]models.Account

	Err error
}

// NewMemAccounts returns an empty MemAccounts.
func NewMemAccounts() *MemAccounts {
	return &MemAccounts{reservations: map[string]string{}, accounts: map[string]models.Account{}}
}

// Seed stores an account and its reservation directly.
func (m *MemAccounts) Seed(acct models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[acct.Username] = acct.ID
	m.accounts[acct.ID] = acct
}

func (m *MemAccounts) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.reservations[username]
	return ok, nil
}

func (m *MemAccounts) GetReservation(_ context.Context, username string) (models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Reservation{}, m.Err
	}
	uid, ok := m.reservations[username]
	if !ok {
		return models.Reservation{}, accountstore.ErrNotFound
	}
	return models.Reservation{Username: username, UID: uid}, nil
}

func (m *MemAccounts) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Account{}, m.Err
	}
	a, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, accountstore.ErrNotFound
	}
	return a, nil
}

func (m *MemAccounts) CreateAccount(_ context.Context, acct models.Account, res models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.reservations[res.Username]; ok {
		return accountstore.ErrUsernameTaken
	}
	m.reservations[res.Username] = res.UID
	m.accounts[acct.ID] = acct
	return nil
}

// Account returns the stored profile for accountID.
func (m *MemAccounts) Account(accountID string) (models.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	return a, ok
}
