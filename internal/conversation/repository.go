package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/sonarchat/internal/identity"
	"github.com/kalambet/sonarchat/internal/kv"
)

const (
	// Placeholder is the title of a conversation with no user message yet.
	Placeholder = "New Conversation"

	// MaxTitleLen bounds a derived title, in runes.
	MaxTitleLen = 50

	keyPrefix = "conversations:"
)

// Key returns the store key holding id's conversation list.
func Key(id identity.UserIdentity) string {
	return keyPrefix + string(id)
}

// Repository loads and saves a user's full conversation list as one JSON value.
type Repository struct {
	store  kv.Store
	logger *slog.Logger
}

// NewRepository returns a repository backed by store.
func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store, logger: slog.Default()}
}

// Load returns the stored conversations for id. Anything other than kv.Found
// yields an empty list; corrupted state is reported, never returned as an error.
func (r *Repository) Load(ctx context.Context, id identity.UserIdentity) ([]Conversation, kv.LoadStatus) {
	raw, err := r.store.Get(ctx, Key(id))
	if errors.Is(err, kv.ErrNotFound) {
		return []Conversation{}, kv.Absent
	}
	if err != nil {
		r.logger.Warn("reading conversations failed", "identity", id, "error", err)
		return []Conversation{}, kv.Unreadable
	}

	var convs []Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		r.logger.Warn("stored conversations are malformed, starting empty", "identity", id, "error", err)
		return []Conversation{}, kv.Malformed
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return r.dedupe(id, convs), kv.Found
}

// Save writes the full list under id's key.
func (r *Repository) Save(ctx context.Context, id identity.UserIdentity, convs []Conversation) error {
	if convs == nil {
		convs = []Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("encoding conversations: %w", err)
	}
	if err := r.store.Set(ctx, Key(id), string(data)); err != nil {
		return fmt.Errorf("writing conversations: %w", err)
	}
	return nil
}

// dedupe drops conversations whose id was already seen. First one wins.
func (r *Repository) dedupe(id identity.UserIdentity, convs []Conversation) []Conversation {
	seen := make(map[string]bool, len(convs))
	out := convs[:0:0]
	for _, c := range convs {
		if seen[c.ID] {
			r.logger.Warn("dropping conversation with duplicate id", "identity", id, "conversation_id", c.ID)
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
