// Package cache defines the byte store behind the report cache's shared tier.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}
