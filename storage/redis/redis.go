// Package redis has a storage provider that keeps sessions in Redis.
//
// Each session is a string value holding the session data. Redis expires
// the value when the session expires, so expired sessions are never
// returned.
package redis

import (
	"context"
	"time"

	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/errors"
	"github.com/redis/go-redis/v9"
)

// Provider provides storage for sessions using Redis.
// It implements the storage.Provider interface.
type Provider struct {
	// Prefix is prepended to every session key.
	Prefix string

	// TimeNow is used to calculate the time to live of each item.
	TimeNow func() time.Time

	client redis.Cmdable
}

var _ storage.Provider = (*Provider)(nil)

// New creates a new Provider using client, which is usually a
// *redis.Client or *redis.ClusterClient.
func New(client redis.Cmdable) *Provider {
	return &Provider{
		TimeNow: time.Now,
		client:  client,
	}
}

// Fetch implements the storage.Provider interface.
func (db *Provider) Fetch(ctx context.Context, key string) (*storage.Item, error) {
	errors := errors.With("key", key)
	pipe := db.client.Pipeline()
	get := pipe.Get(ctx, db.Prefix+key)
	pttl := pipe.PTTL(ctx, db.Prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "cannot get item")
	}
	data, err := get.Result()
	if err == redis.Nil {
		// not found
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot get item")
	}
	item := &storage.Item{
		Key:  key,
		Data: data,
	}
	// negative durations mean no expiry
	if ttl := pttl.Val(); ttl > 0 {
		item.ExpiresAt = db.TimeNow().Add(ttl)
	}
	return item, nil
}

// Save implements the storage.Provider interface. An item that has
// already expired is deleted.
func (db *Provider) Save(ctx context.Context, item *storage.Item) error {
	errors := errors.With("key", item.Key)
	var ttl time.Duration
	if !item.ExpiresAt.IsZero() {
		ttl = item.ExpiresAt.Sub(db.TimeNow())
		if ttl < time.Millisecond {
			if err := db.client.Del(ctx, db.Prefix+item.Key).Err(); err != nil {
				return errors.Wrap(err, "cannot delete item")
			}
			return nil
		}
	}
	if err := db.client.Set(ctx, db.Prefix+item.Key, item.Data, ttl).Err(); err != nil {
		return errors.Wrap(err, "cannot set item")
	}
	return nil
}
