// Package txn runs a group of MongoDB writes as one multi-document transaction.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// ErrNotSupported is returned by Run when the server cannot run
// transactions (standalone mongod). fn has not been committed; callers decide
// how to proceed without a transaction.
var ErrNotSupported = errors.New("txn: transactions not supported by server")

// Run executes fn inside a transaction. The context passed to fn carries the
// session and must be used for every write that belongs to the transaction.
// fn may be retried by the driver on transient errors, so it must be
// idempotent with respect to its own side effects outside Mongo.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fmt.Errorf("%w: %v", ErrNotSupported, err)
		}
		return fmt.Errorf("txn: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadPreference(readpref.Primary()).
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	if err == nil {
		return nil
	}
	if IsNotSupported(err) {
		if log != nil {
			log.Warn("mongo transactions unavailable", zap.Error(err))
		}
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	return err
}

// IsNotSupported reports whether err indicates the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, TransactionNotSupported, OperationNotSupportedInTransaction
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set"):
		return true
	case strings.Contains(msg, "session") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "session"):
		return true
	case strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction"):
		return true
	}
	return false
}
