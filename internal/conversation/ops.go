package conversation

import "unicode/utf8"

// Find returns the index of the conversation with the given id, or -1.
func Find(convs []Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

// EnsureCurrent repairs the "exactly one current conversation" invariant.
// An empty list gets one fresh conversation; a dangling currentID moves to
// the first entry. Applying it to its own output changes nothing.
func EnsureCurrent(convs []Conversation, currentID string) ([]Conversation, string) {
	if len(convs) == 0 {
		c := New()
		return []Conversation{c}, c.ID
	}
	if Find(convs, currentID) < 0 {
		return convs, convs[0].ID
	}
	return convs, currentID
}

// Create prepends a new empty conversation and returns its id.
func Create(convs []Conversation) ([]Conversation, string) {
	c := New()
	out := make([]Conversation, 0, len(convs)+1)
	out = append(out, c)
	out = append(out, convs...)
	return out, c.ID
}

// Delete removes the conversation with the given id. Callers must run
// EnsureCurrent afterwards.
func Delete(convs []Conversation, id string) []Conversation {
	out := make([]Conversation, 0, len(convs))
	for _, c := range convs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// RenameOnFirstMessage titles a conversation after its first user message.
// Titles that are no longer the placeholder are left alone.
func RenameOnFirstMessage(c *Conversation, text string) {
	if c.Title != Placeholder || text == "" {
		return
	}
	c.Title = Truncate(text, MaxTitleLen)
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
