// Package redisledger records consumed single-use tokens in Redis.
package redisledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is put in front of every token key.
const DefaultPrefix = "efish:consumed-token:"

// Ledger implements auth.TokenLedger with one key per consumed token.
// Keys expire when the token would have expired anyway.
type Ledger struct {
	client *redis.Client
	prefix string

	NowFunc func() time.Time
}

func New(client *redis.Client, prefix string) *Ledger {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Ledger{
		client:  client,
		prefix:  prefix,
		NowFunc: time.Now,
	}
}

// Consume marks the token with id as used, it reports false if it was
// used before.
func (l *Ledger) Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(l.NowFunc())
	if ttl < time.Second {
		// The token is about to expire, but must still be remembered until it does.
		ttl = time.Second
	}

	ok, err := l.client.SetNX(ctx, l.prefix+id, expiresAt.UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}

	return ok, nil
}
