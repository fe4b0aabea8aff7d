// internal/app/store/credentials/credentialstore.go
package credentialstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/heard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no credential matches.
var ErrNotFound = errors.New("credential not found")

// ErrDuplicateEmail is returned when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Store persists password credentials for the local identity provider.
// Email is unique (see indexes).
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("credentials")}
}

// Create inserts a credential. Email must already be normalized.
func (s *Store) Create(ctx context.Context, cred models.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, cred); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByEmail loads the credential for a normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Credential, error) {
	var cred models.Credential
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Credential{}, ErrNotFound
	}
	return cred, err
}

// Delete removes the credential by account id. Returns the number deleted.
func (s *Store) Delete(ctx context.Context, accountID string) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": accountID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// SetDisabled enables or disables sign-in for an account.
func (s *Store) SetDisabled(ctx context.Context, accountID string, disabled bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"disabled": disabled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
