package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/credential"
	"github.com/kalambet/sonarchat/internal/identity"
	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/kv"
	"github.com/kalambet/sonarchat/internal/llm"
)

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrNotAuthenticated    = errors.New("not logged in")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrUnknownModel        = errors.New("unknown model")
)

// Completer produces an assistant reply. Implemented by llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, model, apiKey string) (string, error)
}

// Controller applies user actions to a State. Every mutation is persisted
// right away; write failures are logged and otherwise ignored.
type Controller struct {
	llm          Completer
	policy       credential.Policy
	defaultModel string
	logger       *slog.Logger
}

// NewController creates a controller. An empty or unsupported defaultModel
// falls back to llm.DefaultModel.
func NewController(completer Completer, policy credential.Policy, defaultModel string) *Controller {
	if !llm.KnownModel(defaultModel) {
		defaultModel = llm.DefaultModel
	}
	return &Controller{
		llm:          completer,
		policy:       policy,
		defaultModel: defaultModel,
		logger:       slog.Default(),
	}
}

// Open builds a fresh state from a scope's store.
func (c *Controller) Open(ctx context.Context, store kv.Store) *State {
	id, src := identity.Resolve(ctx, store)
	st := &State{
		Identity:       id,
		IdentitySource: src,
		Model:          c.defaultModel,
		convs:          conversation.NewRepository(store),
		instrs:         instructions.NewStore(store),
	}

	convs, status := st.convs.Load(ctx, id)
	st.ConversationsStatus = status
	before := len(convs)
	st.Conversations, st.CurrentID = conversation.EnsureCurrent(convs, "")
	// An unreadable list may still exist in the store; do not overwrite it.
	if before == 0 && status != kv.Unreadable {
		c.saveConversations(ctx, st)
	}

	st.Instructions, _ = st.instrs.Load(ctx, id)

	c.logger.Debug("session opened", "identity", id, "identity_source", src, "conversations", status, "count", len(st.Conversations))
	return st
}

// Login applies the credential rule and records the resulting API key.
func (c *Controller) Login(st *State, supplied string) error {
	key, err := c.policy.Accept(supplied)
	if err != nil {
		return err
	}
	st.APIKey = key
	st.Authenticated = true
	return nil
}

// LoginWithKey authenticates st with an API key taken from configuration.
func (c *Controller) LoginWithKey(st *State, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return credential.ErrEmptyCredential
	}
	st.APIKey = apiKey
	st.Authenticated = true
	return nil
}

func (c *Controller) Logout(st *State) {
	st.APIKey = ""
	st.Authenticated = false
}

// Send appends text to the current conversation, asks the model and appends
// the reply. On failure the user message stays in the conversation.
func (c *Controller) Send(ctx context.Context, st *State, text string) (string, error) {
	if !st.Authenticated {
		return "", ErrNotAuthenticated
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	conv := st.Current()
	conv.Append(conversation.RoleUser, text)
	conversation.RenameOnFirstMessage(conv, strings.TrimSpace(text))
	c.saveConversations(ctx, st)

	payload := make([]llm.Message, 0, len(conv.Messages)+1)
	payload = append(payload, llm.Message{Role: string(conversation.RoleSystem), Content: st.Instructions.Active().Content})
	for _, m := range conv.Messages {
		payload = append(payload, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	reply, err := c.llm.Complete(ctx, payload, st.Model, st.APIKey)
	if err != nil {
		c.logger.Warn("completion failed", "identity", st.Identity, "model", st.Model, "error", err)
		return "", err
	}

	conv.Append(conversation.RoleAssistant, reply)
	c.saveConversations(ctx, st)
	return reply, nil
}

// NewConversation creates an empty conversation and selects it.
func (c *Controller) NewConversation(ctx context.Context, st *State) string {
	st.Conversations, st.CurrentID = conversation.Create(st.Conversations)
	c.saveConversations(ctx, st)
	return st.CurrentID
}

func (c *Controller) SelectConversation(st *State, id string) error {
	if conversation.Find(st.Conversations, id) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownConversation, id)
	}
	st.CurrentID = id
	return nil
}

// DeleteConversation removes id. The list is never left empty.
func (c *Controller) DeleteConversation(ctx context.Context, st *State, id string) error {
	if conversation.Find(st.Conversations, id) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownConversation, id)
	}
	convs := conversation.Delete(st.Conversations, id)
	st.Conversations, st.CurrentID = conversation.EnsureCurrent(convs, st.CurrentID)
	c.saveConversations(ctx, st)
	return nil
}

// ClearConversation empties the current conversation and restores the
// placeholder title.
func (c *Controller) ClearConversation(ctx context.Context, st *State) {
	conv := st.Current()
	conv.Messages = []conversation.Message{}
	conv.Title = conversation.Placeholder
	c.saveConversations(ctx, st)
}

func (c *Controller) SetModel(st *State, model string) error {
	if !llm.KnownModel(model) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	st.Model = model
	return nil
}

func (c *Controller) CreateInstruction(ctx context.Context, st *State, name, content string) error {
	if err := st.Instructions.Create(name, content); err != nil {
		return err
	}
	c.saveInstructions(ctx, st)
	return nil
}

func (c *Controller) UpdateInstruction(ctx context.Context, st *State, name, content string) error {
	if err := st.Instructions.Update(name, content); err != nil {
		return err
	}
	c.saveInstructions(ctx, st)
	return nil
}

func (c *Controller) DeleteInstruction(ctx context.Context, st *State, name string) error {
	if err := st.Instructions.Delete(name); err != nil {
		return err
	}
	c.saveInstructions(ctx, st)
	return nil
}

func (c *Controller) SelectInstruction(ctx context.Context, st *State, name string) error {
	if err := st.Instructions.Select(name); err != nil {
		return err
	}
	c.saveInstructions(ctx, st)
	return nil
}

func (c *Controller) saveConversations(ctx context.Context, st *State) {
	if err := st.convs.Save(ctx, st.Identity, st.Conversations); err != nil {
		c.logger.Warn("persisting conversations failed", "identity", st.Identity, "key", conversation.Key(st.Identity), "error", err)
	}
}

func (c *Controller) saveInstructions(ctx context.Context, st *State) {
	if err := st.instrs.Save(ctx, st.Identity, st.Instructions); err != nil {
		c.logger.Warn("persisting instructions failed", "identity", st.Identity, "key", instructions.Key(st.Identity), "error", err)
	}
}
