package indexes_test

import (
	"testing"

	"github.com/dalemusser/heard/internal/app/system/indexes"
	"github.com/dalemusser/heard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	want := map[string][]string{
		"usernames":            {"idx_usernames_uid"},
		"users":                {"uniq_users_username", "idx_users_email"},
		"credentials":          {"uniq_credentials_email"},
		"orphaned_credentials": {"idx_orphans_created"},
		"login_records":        {"idx_logins_account_created", "idx_logins_created"},
		"audit_events":         {"idx_audit_created", "idx_audit_category_type_created", "idx_audit_account_created"},
	}
	for coll, names := range want {
		got := indexNames(t, db, coll)
		for _, n := range names {
			if !got[n] {
				t.Errorf("%s: missing index %q (have %v)", coll, n, got)
			}
		}
	}
}

func TestEnsureAll_RenamesIndexWithSameKeys(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("legacy_email"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	got := indexNames(t, db, "users")
	if got["legacy_email"] || !got["idx_users_email"] {
		t.Errorf("expected legacy_email renamed to idx_users_email, have %v", got)
	}
}

func TestEnsureAll_UniqueCredentialEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	c := db.Collection("credentials")
	if _, err := c.InsertOne(ctx, bson.M{"_id": "a", "email": "ada@example.com"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "b", "email": "ada@example.com"}); !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("second insert err = %v, want duplicate key", err)
	}
}
