package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/heard/internal/app/store/audit"
	"github.com/dalemusser/heard/internal/testutil"
)

func TestStore_LogAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventSignUpSuccess, AccountID: "acct-1", Identifier: "ada", Success: true},
		{Category: audit.CategoryAuth, EventType: audit.EventSignInFailed, Identifier: "ada", FailureReason: "wrong_password"},
		{Category: audit.CategorySecurity, EventType: audit.EventCredentialOrphaned, AccountID: "acct-2"},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	got, err := store.Query(ctx, audit.QueryFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].EventType != audit.EventSignUpSuccess {
		t.Fatalf("Query(acct-1) = %+v, want one signup_success", got)
	}
	if got[0].ID.IsZero() || got[0].CreatedAt.IsZero() {
		t.Error("expected ID and CreatedAt to be set")
	}

	n, err := store.Count(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count(auth) = %d, want 2", n)
	}
}

func TestStore_QuerySince(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventSignOut, CreatedAt: old}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventSignOut}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	since := time.Now().UTC().Add(-time.Hour)
	got, err := store.Query(ctx, audit.QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Query(since 1h) returned %d events, want 1", len(got))
	}
}
