package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under a key.
var ErrNotFound = errors.New("key not found")

// KV is the durable key/value storage used to persist board state.
// Values are opaque strings; callers own their encoding.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Keys returns all stored keys that start with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
