// Package storage persists whole values under string keys and layers the
// expense and account repositories on top.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KeyUsers holds the JSON array of registered accounts.
const KeyUsers = "users"

// KeyExpenses returns the key holding a user's full expense array.
func KeyExpenses(username string) string {
	return "expenses_" + username
}

// KV is a byte-valued key-value store. Values are replaced wholesale.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
