// Package session holds the per-session chat state and the controller that
// applies every user action to it.
package session

import (
	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/identity"
	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/kv"
)

// State is everything one UI session knows. It is not safe for concurrent
// use; the Manager serializes access through Session.Do.
type State struct {
	Identity       identity.UserIdentity
	IdentitySource identity.Source

	Conversations       []conversation.Conversation
	ConversationsStatus kv.LoadStatus
	CurrentID           string
	Instructions  *instructions.Set

	Model         string
	APIKey        string
	Authenticated bool

	convs  *conversation.Repository
	instrs *instructions.Store
}

// Current returns the current conversation. EnsureCurrent keeps it non-nil.
func (s *State) Current() *conversation.Conversation {
	i := conversation.Find(s.Conversations, s.CurrentID)
	if i < 0 {
		return nil
	}
	return &s.Conversations[i]
}

// Degraded reports whether the state was built without reaching the store:
// the identity could not be persisted or the conversations could not be read.
func (s *State) Degraded() bool {
	return s.IdentitySource == identity.Ephemeral || s.ConversationsStatus == kv.Unreadable
}

// Summary is a conversation without its messages.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
	Current  bool   `json:"current"`
}

// Summaries lists conversations in display order.
func (s *State) Summaries() []Summary {
	out := make([]Summary, len(s.Conversations))
	for i, c := range s.Conversations {
		out[i] = Summary{ID: c.ID, Title: c.Title, Messages: len(c.Messages), Current: c.ID == s.CurrentID}
	}
	return out
}
