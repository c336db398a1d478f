// Package mongostore stores users, accounts, tasks and consumed tokens in
// MongoDB. It is an alternative to the SQLite stores, selected with
// STORE_DRIVER=mongo.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/efish/efish/internal/errorz"
)

const (
	usersCollection          = "users"
	accountsCollection       = "accounts"
	countersCollection       = "counters"
	tasksCollection          = "tasks"
	consumedTokensCollection = "consumed_tokens"
)

// Store implements the auth, account and task stores and the token
// ledger on a single database.
type Store struct {
	db *mongo.Database
}

// Connect connects to the server at uri and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to ping mongo: %w", err),
			client.Disconnect(context.Background()),
		)
	}

	return client, nil
}

// New creates a store on the named database and makes sure its indexes
// exist.
func New(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	s := &Store{
		db: client.Database(database),
	}

	err := s.ensureIndexes(ctx)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
		},
		accountsCollection: {
			{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		consumedTokensCollection: {
			// Documents are removed by the server once expires_at passed.
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}

	for coll, models := range indexes {
		_, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}

	return nil
}

// mapErr maps mongo errors to errorz errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errorz.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", errorz.ErrDuplicate, err)
	}

	return err
}

// utc truncates t to the millisecond precision of BSON dates.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
