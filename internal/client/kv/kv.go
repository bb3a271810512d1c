// Package kv implements the durable local key-value store backing the record
// store. Values are opaque blobs persisted under stable keys; everything the
// client owns (cached records, watermark) survives restarts through it.
package kv

import "context"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
