// Package conversation holds the conversation model and the repository that
// persists a user's conversation list in a key/value store.
package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role is the author of a message. The vocabulary is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Role(s).Valid() {
		return fmt.Errorf("unknown message role %q", s)
	}
	*r = Role(s)
	return nil
}

// Message is one chat turn. Messages are never edited once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a titled, chronological list of messages.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// New returns an empty conversation with a fresh id and the placeholder title.
func New() Conversation {
	return Conversation{
		ID:       uuid.New().String(),
		Title:    Placeholder,
		Messages: []Message{},
	}
}

// Append adds a message at the end of the conversation.
func (c *Conversation) Append(role Role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}
