// internal/app/store/logins/loginstore.go
package loginstore

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/heard/internal/app/system/ratelimit"
	"github.com/dalemusser/heard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sign-in methods recorded on a LoginRecord.
const (
	MethodEmail    = "email"
	MethodUsername = "username"
	MethodSignUp   = "signup"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_records")}
}

// Create inserts a LoginRecord. If CreatedAt is zero, it's set to time.Now().UTC().
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// CreateFrom builds a LoginRecord from the HTTP request and inserts it.
func (s *Store) CreateFrom(ctx context.Context, r *http.Request, accountID, method string) error {
	return s.Create(ctx, models.LoginRecord{
		AccountID: accountID,
		IP:        ratelimit.ClientIP(r),
		Method:    method,
	})
}

// Recent returns the latest records for an account, newest first.
func (s *Store) Recent(ctx context.Context, accountID string, limit int64) ([]models.LoginRecord, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"account_id": accountID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.LoginRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
