package instructions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/sonarchat/internal/identity"
	"github.com/kalambet/sonarchat/internal/kv"
)

const keyPrefix = "instructions:"

// Key returns the store key holding id's instruction profiles.
func Key(id identity.UserIdentity) string {
	return keyPrefix + string(id)
}

type record struct {
	Active   string    `json:"active"`
	Profiles []Profile `json:"profiles"`
}

// Store persists a user's profiles. Default is never written; it is rebuilt
// from the embedded text on every load.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store, logger: slog.Default()}
}

// Load returns id's profile set. Failures yield a Default-only set and are
// reported through the status.
func (s *Store) Load(ctx context.Context, id identity.UserIdentity) (*Set, kv.LoadStatus) {
	set := NewSet()

	raw, err := s.kv.Get(ctx, Key(id))
	if errors.Is(err, kv.ErrNotFound) {
		return set, kv.Absent
	}
	if err != nil {
		s.logger.Warn("reading instructions failed", "identity", id, "error", err)
		return set, kv.Unreadable
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("stored instructions are malformed, using default", "identity", id, "error", err)
		return set, kv.Malformed
	}

	for _, p := range rec.Profiles {
		if err := set.Create(p.Name, p.Content); err != nil {
			s.logger.Warn("skipping stored instruction profile", "identity", id, "name", p.Name, "error", err)
		}
	}
	if set.Select(rec.Active) != nil {
		set.active = DefaultName
	}
	return set, kv.Found
}

// Save writes every profile except Default plus the active pointer.
func (s *Store) Save(ctx context.Context, id identity.UserIdentity, set *Set) error {
	rec := record{Active: set.Active().Name, Profiles: set.Profiles()[1:]}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding instructions: %w", err)
	}
	if err := s.kv.Set(ctx, Key(id), string(data)); err != nil {
		return fmt.Errorf("writing instructions: %w", err)
	}
	return nil
}
