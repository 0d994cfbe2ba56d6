package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/session"
)

// MCPDeps holds dependencies for the MCP server. The session is bound to a
// single storage scope for the lifetime of the process.
type MCPDeps struct {
	Session    *session.Session
	Controller *session.Controller
}

// NewMCPServer creates an MCP server with the chat tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"sonarchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sonarchat: Perplexity-backed chat with saved conversations and instruction profiles."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List saved conversations, most recent first."),
		),
		mcpListConversations(deps),
	)

	s.AddTool(
		mcp.NewTool("get_conversation",
			mcp.WithDescription("Return one conversation with all of its messages."),
			mcp.WithString("id", mcp.Description("Conversation id (default: the current conversation)")),
		),
		mcpGetConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("new_conversation",
			mcp.WithDescription("Start a new empty conversation and make it current."),
		),
		mcpNewConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("list_instructions",
			mcp.WithDescription("List instruction profiles and which one is active."),
		),
		mcpListInstructions(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Send a message in a conversation and return the assistant reply."),
			mcp.WithString("text", mcp.Description("Message text"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Conversation to continue (default: the current conversation)")),
		),
		mcpAsk(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"chat://conversations",
			"Conversations",
			mcp.WithResourceDescription("Conversation summaries as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceConversations(deps),
	)

	return s
}

func mcpListConversations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var list conversationList
		deps.Session.Do(func(st *session.State) error {
			list = newConversationList(st)
			return nil
		})
		return mcpJSON(list), nil
	}
}

func mcpGetConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var conv conversation.Conversation
		err := deps.Session.Do(func(st *session.State) error {
			id := req.GetString("id", st.CurrentID)
			i := conversation.Find(st.Conversations, id)
			if i < 0 {
				return unknownConversation(id)
			}
			conv = st.Conversations[i]
			return nil
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(conv), nil
	}
}

func mcpNewConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var id string
		deps.Session.Do(func(st *session.State) error {
			id = deps.Controller.NewConversation(ctx, st)
			return nil
		})
		return mcpText(id), nil
	}
}

func mcpListInstructions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var list instructionList
		deps.Session.Do(func(st *session.State) error {
			list = newInstructionList(st.Instructions)
			return nil
		})
		return mcpJSON(list), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		convID := req.GetString("conversation_id", "")

		var reply string
		err = deps.Session.Do(func(st *session.State) error {
			if convID != "" {
				if err := deps.Controller.SelectConversation(st, convID); err != nil {
					return err
				}
			}
			reply, err = deps.Controller.Send(ctx, st, text)
			return err
		})
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpResourceConversations(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var sums []session.Summary
		deps.Session.Do(func(st *session.State) error {
			sums = st.Summaries()
			return nil
		})

		b, err := json.Marshal(sums)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal conversations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
