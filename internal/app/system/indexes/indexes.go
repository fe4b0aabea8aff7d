// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.

The usernames collection needs nothing beyond its _id index: the lowercased
username is the _id, which is what makes a reservation unique.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, step := range []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"usernames", ensureUsernames},
		{"users", ensureUsers},
		{"credentials", ensureCredentials},
		{"orphaned_credentials", ensureOrphanedCredentials},
		{"login_records", ensureLoginRecords},
		{"audit_events", ensureAuditEvents},
	} {
		if err := step.fn(ctx, db); err != nil {
			problems = append(problems, step.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(p *bool) bool { return p != nil && *p }

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB return IndexOptionsConflict when an index with the same keys
// already exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// createErr formats a CreateOne failure, with a hint for unique indexes that
// cannot be built because duplicates are already present.
func createErr(coll *mongo.Collection, name string, unique bool, err error) string {
	if unique && isDuplicateKeyErr(err) {
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name)
	}
	return fmt.Sprintf("%s(%s): %v", coll.Name(), name, err)
}

// replace drops an index and creates the desired one in its place.
func replace(ctx context.Context, coll *mongo.Collection, oldName string, m mongo.IndexModel, name string, unique bool) error {
	if _, err := coll.Indexes().DropOne(ctx, oldName); err != nil {
		zap.L().Warn("drop existing index failed",
			zap.String("collection", coll.Name()),
			zap.String("name", oldName),
			zap.Error(err))
		return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		return errors.New(createErr(coll, name, unique, err))
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = boolVal(m.Options.Unique)
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique),
		}

		zap.L().Info("ensuring index", fields...)

		if ex, ok := listIndexes(ctx, coll)[desiredSig]; ok {
			switch {
			case desiredUnique != boolVal(ex.Unique):
				// Options mismatch (e.g., upgrading to unique).
				if err := replace(ctx, coll, ex.Name, m, desiredName, desiredUnique); err != nil {
					errs = append(errs, err.Error())
					continue
				}
				zap.L().Info("index dropped and recreated", append(fields, zap.Duration("took", time.Since(start)))...)
			case desiredName != "" && ex.Name != desiredName:
				if err := replace(ctx, coll, ex.Name, m, desiredName, desiredUnique); err != nil {
					errs = append(errs, err.Error())
					continue
				}
				zap.L().Info("index renamed", append(fields, zap.String("from", ex.Name))...)
			default:
				zap.L().Info("reusing existing index", append(fields, zap.Duration("took", time.Since(start)))...)
			}
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			zap.L().Info("index ensured", append(fields,
				zap.String("created_name", created),
				zap.Duration("took", time.Since(start)))...)
			continue
		}

		if isOptionsConflictErr(err) {
			if match, ok := listIndexes(ctx, coll)[desiredSig]; ok {
				if desiredUnique == boolVal(match.Unique) {
					zap.L().Info("reusing existing index (post-conflict)", fields...)
					continue
				}
				if rerr := replace(ctx, coll, match.Name, m, desiredName, desiredUnique); rerr != nil {
					errs = append(errs, rerr.Error())
				}
				continue
			}
		}

		zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
		errs = append(errs, createErr(coll, desiredName, desiredUnique, err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsernames(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("usernames")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Reverse lookup: which username does an account hold
		{
			Keys:    bson.D{{Key: "uid", Value: 1}},
			Options: options.Index().SetName("idx_usernames_uid"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Mirrors the usernames reservation; catches writes that bypass it
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_username"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email"),
		},
	})
}

func ensureCredentials(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("credentials")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_credentials_email"),
		},
	})
}

func ensureOrphanedCredentials(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("orphaned_credentials")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Reconciler scans oldest first
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_orphans_created"),
		},
	})
}

func ensureLoginRecords(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("login_records")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-account history (latest-first)
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_logins_account_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_created"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type_created"),
		},
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_account_created"),
		},
	})
}
