// Package storage is the durable key-value substrate behind the session and cart stores.
// Writes are last-write-wins; nothing here coordinates concurrent writers across processes.
package storage

import (
	"context"
	"errors"
)

// Store persists opaque values under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var ErrNotFound = errors.New("storage: key not found")
