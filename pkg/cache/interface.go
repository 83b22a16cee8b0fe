package cache

import (
	"context"
	"time"
)

// Cache is the key-value surface the pipeline depends on. The production
// implementation is Redis; tests use in-memory fakes.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
