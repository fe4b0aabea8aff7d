// internal/app/store/orphans/orphanstore.go
package orphanstore

import (
	"context"
	"time"

	"github.com/dalemusser/heard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store tracks identity-provider accounts that could not be rolled back.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("orphaned_credentials")}
}

// Record inserts an orphan. Recording the same account twice is a no-op.
func (s *Store) Record(ctx context.Context, o models.OrphanedCredential) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, o); err != nil && !wafflemongo.IsDup(err) {
		return err
	}
	return nil
}

// Pending returns up to limit orphans, oldest first.
func (s *Store) Pending(ctx context.Context, limit int64) ([]models.OrphanedCredential, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.OrphanedCredential
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAttempt records a failed retry.
func (s *Store) MarkAttempt(ctx context.Context, accountID string, cause error) error {
	now := time.Now().UTC()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"last_error": msg, "retried_at": now},
		},
	)
	return err
}

// Resolve removes the orphan after its credential has been deleted.
func (s *Store) Resolve(ctx context.Context, accountID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": accountID})
	return err
}

// Count returns the number of unresolved orphans.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
