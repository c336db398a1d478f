package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

type consumedTokenDoc struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Consume implements auth.TokenLedger. Expired entries are removed by
// the TTL index on expires_at.
func (s *Store) Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	_, err := s.db.Collection(consumedTokensCollection).InsertOne(ctx, consumedTokenDoc{
		ID:        id,
		ExpiresAt: utc(expiresAt),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}

	return true, nil
}
