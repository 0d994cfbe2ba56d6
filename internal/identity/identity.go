// Package identity resolves the stable, non-authenticating user identifier
// kept in a browser scope's key/value store.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/sonarchat/internal/kv"
)

// Key is the store key holding the identity token.
const Key = "user_id"

// UserIdentity is an opaque token naming one browser profile.
type UserIdentity string

// Source reports where a resolved identity came from.
type Source int

const (
	// Stored means the identity was read back from the store.
	Stored Source = iota
	// Created means a new identity was generated and persisted.
	Created
	// Ephemeral means a new identity was generated but could not be persisted.
	Ephemeral
)

func (s Source) String() string {
	switch s {
	case Stored:
		return "stored"
	case Created:
		return "created"
	case Ephemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Resolve reads the identity from store, creating one when it is absent or
// unreadable. It never fails: a store that cannot be written yields an
// ephemeral identity.
func Resolve(ctx context.Context, store kv.Store) (UserIdentity, Source) {
	v, err := store.Get(ctx, Key)
	switch {
	case err == nil && v != "":
		return UserIdentity(v), Stored
	case err != nil && !errors.Is(err, kv.ErrNotFound):
		slog.Warn("reading user identity failed, generating a new one", "error", err)
	}

	id := UserIdentity(uuid.New().String())
	if err := store.Set(ctx, Key, string(id)); err != nil {
		slog.Warn("persisting user identity failed, identity is ephemeral", "error", err)
		return id, Ephemeral
	}
	return id, Created
}

// GetOrCreate is Resolve without the source.
func GetOrCreate(ctx context.Context, store kv.Store) UserIdentity {
	id, _ := Resolve(ctx, store)
	return id
}
