// internal/app/store/accounts/accountstore.go
package accountstore

// Terminology:
//   - AccountID / uid: the identity provider's id; _id of the users document
//   - Username: lowercased handle; _id of the usernames reservation document

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/heard/internal/app/system/txn"
	"github.com/dalemusser/heard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned by CreateAccount when the reservation already
// exists. Nothing is written in that case.
var ErrUsernameTaken = errors.New("username already reserved")

// Store reads and writes the usernames and users collections.
type Store struct {
	db        *mongo.Database
	usernames *mongo.Collection
	users     *mongo.Collection
	log       *zap.Logger

	// beforeCommit runs inside CreateAccount after both documents are
	// written and before the write is committed. Tests use it to force a
	// failure at the last moment.
	beforeCommit func(ctx context.Context) error
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:        db,
		usernames: db.Collection("usernames"),
		users:     db.Collection("users"),
		log:       logger,
	}
}

// GetReservation loads usernames/{username}. username must be lowercased.
func (s *Store) GetReservation(ctx context.Context, username string) (models.Reservation, error) {
	var r models.Reservation
	err := s.usernames.FindOne(ctx, bson.M{"_id": username}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Reservation{}, ErrNotFound
	}
	return r, err
}

// UsernameTaken reports whether a reservation exists for username.
func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	n, err := s.usernames.CountDocuments(ctx, bson.M{"_id": username})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetAccount loads users/{accountID}.
func (s *Store) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	var a models.Account
	err := s.users.FindOne(ctx, bson.M{"_id": accountID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

// CreateAccount writes the account and its username reservation together.
// Either both documents become visible or neither does.
//
// On a replica set both inserts run in one transaction. On a standalone
// server the inserts run in order (reservation first, so a duplicate stops
// the write before the profile exists) and a failure after the reservation
// deletes it again.
func (s *Store) CreateAccount(ctx context.Context, acct models.Account, res models.Reservation) error {
	if acct.ID == "" || res.Username == "" || res.UID != acct.ID {
		return fmt.Errorf("create account: reservation uid %q does not match account %q", res.UID, acct.ID)
	}

	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		return s.insertBoth(ctx, acct, res)
	})
	if errors.Is(err, txn.ErrNotSupported) {
		s.log.Warn("creating account without transaction",
			zap.String("account_id", acct.ID),
			zap.String("username", res.Username))
		err = s.createOrdered(ctx, acct, res)
	}
	return err
}

func (s *Store) insertBoth(ctx context.Context, acct models.Account, res models.Reservation) error {
	if _, err := s.usernames.InsertOne(ctx, res); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	if _, err := s.users.InsertOne(ctx, acct); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createOrdered(ctx context.Context, acct models.Account, res models.Reservation) error {
	err := s.insertBoth(ctx, acct, res)
	if err == nil || errors.Is(err, ErrUsernameTaken) {
		return err
	}

	// Undo whatever landed, even if the request context is gone.
	cctx := context.WithoutCancel(ctx)
	if _, derr := s.users.DeleteOne(cctx, bson.M{"_id": acct.ID}); derr != nil {
		s.log.Error("rollback: delete account failed", zap.String("account_id", acct.ID), zap.Error(derr))
	}
	if _, derr := s.usernames.DeleteOne(cctx, bson.M{"_id": res.Username, "uid": res.UID}); derr != nil {
		s.log.Error("rollback: delete reservation failed", zap.String("username", res.Username), zap.Error(derr))
	}
	return err
}
