package credentialstore_test

import (
	"errors"
	"testing"

	credentialstore "github.com/dalemusser/heard/internal/app/store/credentials"
	"github.com/dalemusser/heard/internal/app/system/indexes"
	"github.com/dalemusser/heard/internal/domain/models"
	"github.com/dalemusser/heard/internal/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	store := credentialstore.New(db)
	if err := store.Create(ctx, models.Credential{ID: "c1", Email: "ada@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != "c1" || got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Errorf("unexpected credential: %+v", got)
	}

	err = store.Create(ctx, models.Credential{ID: "c2", Email: "ada@example.com", PasswordHash: "h"})
	if !errors.Is(err, credentialstore.ErrDuplicateEmail) {
		t.Errorf("duplicate email err = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := credentialstore.New(db)
	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, credentialstore.ErrNotFound) {
		t.Errorf("GetByEmail err = %v, want ErrNotFound", err)
	}
	if err := store.SetDisabled(ctx, "missing", true); !errors.Is(err, credentialstore.ErrNotFound) {
		t.Errorf("SetDisabled err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAndDisable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := credentialstore.New(db)
	if err := store.Create(ctx, models.Credential{ID: "c1", Email: "ada@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetDisabled(ctx, "c1", true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}
	got, _ := store.GetByEmail(ctx, "ada@example.com")
	if !got.Disabled {
		t.Error("expected credential to be disabled")
	}

	n, err := store.Delete(ctx, "c1")
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	n, err = store.Delete(ctx, "c1")
	if err != nil || n != 0 {
		t.Errorf("second Delete = %d, %v; want 0, nil", n, err)
	}
}
