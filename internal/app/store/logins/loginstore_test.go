package loginstore_test

import (
	"net/http/httptest"
	"testing"
	"time"

	loginstore "github.com/dalemusser/heard/internal/app/store/logins"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/dalemusser/heard/internal/testutil"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Create(ctx, models.LoginRecord{AccountID: "acct-1", IP: "192.168.1.1", Method: loginstore.MethodEmail}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	recs, err := store.Recent(ctx, "acct-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].IP != "192.168.1.1" || recs[0].Method != loginstore.MethodEmail {
		t.Errorf("unexpected record %+v", recs[0])
	}
	if recs[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_CreateFrom(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r := httptest.NewRequest("POST", "/start/signin", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if err := store.CreateFrom(ctx, r, "acct-1", loginstore.MethodUsername); err != nil {
		t.Fatalf("CreateFrom failed: %v", err)
	}
	recs, err := store.Recent(ctx, "acct-1", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("Recent = %v, %v", recs, err)
	}
	if recs[0].IP != "203.0.113.9" {
		t.Errorf("IP: got %q, want 203.0.113.9", recs[0].IP)
	}
}

func TestStore_RecentOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.Create(ctx, models.LoginRecord{AccountID: "acct-1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	recs, err := store.Recent(ctx, "acct-1", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("first record CreatedAt = %v, want newest", recs[0].CreatedAt)
	}
}
