// Package kv defines the scoped key/value store that holds all per-browser
// state: the user identity, the conversation list and instruction profiles.
//
// A Backend partitions storage into scopes. One scope corresponds to one
// browser profile; keys inside a scope never collide with another scope's.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("not found")

// Store is a string key/value store for a single scope.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend hands out one Store per scope.
type Backend interface {
	Scope(name string) Store
	Close() error
}
