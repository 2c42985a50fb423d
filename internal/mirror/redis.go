package mirror

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each mirror key as a plain Redis string holding the JSON array.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client. The client is owned by the caller.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get fetches the raw value.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// Put overwrites the value without expiry.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Close leaves the shared client open.
func (r *Redis) Close() error { return nil }
