// Package cache provides the key-value storage collaborator used for durable
// event, pattern and time-series retention. Keys carry per-key expiry; the
// engine treats the store as a derived snapshot, never the source of truth
// for live state.
package cache

import (
	"context"
	"errors"
	"time"
)

// Provider defines the minimal key-value operations the engine persists through.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider implements Provider but never stores data. Used when durable
// storage is disabled; in-memory engine state is unaffected.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Del is a no-op.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
