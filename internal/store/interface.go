// Package store provides the small key-value persistence layer behind the
// revision token and other opaque device state.
package store

import "context"

// Store persists opaque string values by key. A missing key reads as "".
type Store interface {
	// Get returns the value stored under key, or "" if none was stored.
	Get(ctx context.Context, key string) (string, error)
	// Set records value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Close releases any resources held by the store.
	Close() error
}
