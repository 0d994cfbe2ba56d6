package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalambet/sonarchat/internal/conversation"
)

func TestSendMessage(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		replyWith("**Strain Name:** GG #4")(w, r)
	})
	c.login()

	var resp sendResponse
	if code := c.do(http.MethodPost, "/api/messages", map[string]string{"text": "gg #4"}, &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Reply != "**Strain Name:** GG #4" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.Conversation.Title != "gg #4" || len(resp.Conversation.Messages) != 2 {
		t.Errorf("conversation = %+v", resp.Conversation)
	}

	if gotAuth != "Bearer pplx-default" {
		t.Errorf("upstream Authorization = %q", gotAuth)
	}
	if gotBody.Model != "sonar" || len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("upstream body = %+v", gotBody)
	}
}

func TestSendMessage_Empty(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		replyWith("x")(w, r)
	})
	c.login()

	var body errorBody
	if code := c.do(http.MethodPost, "/api/messages", map[string]string{"text": "   "}, &body); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if body.Error.Type != "invalid_request_error" {
		t.Errorf("type = %q", body.Error.Type)
	}
	if calls.Load() != 0 {
		t.Error("upstream called for empty message")
	}
}

func TestSendMessage_UpstreamBadRequest(t *testing.T) {
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Invalid model"}`)
	})
	c.login()

	var body errorBody
	if code := c.do(http.MethodPost, "/api/messages", map[string]string{"text": "gg #4"}, &body); code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", code)
	}
	if body.Error.Kind != "bad_request" || body.Error.Detail != `{"error":"Invalid model"}` {
		t.Errorf("error = %+v", body.Error)
	}

	var conv conversation.Conversation
	c.do(http.MethodGet, "/api/conversations/current", nil, &conv)
	if len(conv.Messages) != 1 || conv.Messages[0].Role != conversation.RoleUser {
		t.Errorf("messages after failure = %+v", conv.Messages)
	}
}

func TestSendMessage_UpstreamUnauthorized(t *testing.T) {
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.login()

	var body errorBody
	if code := c.do(http.MethodPost, "/api/messages", map[string]string{"text": "hi"}, &body); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if body.Error.Kind != "unauthenticated" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestSendMessage_UpstreamServerError(t *testing.T) {
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.login()

	var body errorBody
	if code := c.do(http.MethodPost, "/api/messages", map[string]string{"text": "hi"}, &body); code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", code)
	}
	if body.Error.Kind != "server_error" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestSetModel(t *testing.T) {
	var gotModel atomic.Value
	c, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var b struct{ Model string }
		json.NewDecoder(r.Body).Decode(&b)
		gotModel.Store(b.Model)
		replyWith("x")(w, r)
	})
	c.login()

	if code := c.do(http.MethodPut, "/api/settings/model", map[string]string{"model": "sonar-reasoning-pro"}, nil); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if code := c.do(http.MethodPut, "/api/settings/model", map[string]string{"model": "gpt-4"}, nil); code != http.StatusBadRequest {
		t.Errorf("unknown model status = %d, want 400", code)
	}

	c.do(http.MethodPost, "/api/messages", map[string]string{"text": "hi"}, nil)
	if m, _ := gotModel.Load().(string); m != "sonar-reasoning-pro" {
		t.Errorf("upstream model = %q", m)
	}
}

func TestSendMessage_MarkdownPreserved(t *testing.T) {
	md := "### Header\n- **bold** `code`\n\n| a | b |"
	c, _ := newTestAPI(t, replyWith(md))
	c.login()

	c.do(http.MethodPost, "/api/messages", map[string]string{"text": "show me"}, nil)

	var conv conversation.Conversation
	c.do(http.MethodGet, "/api/conversations/current", nil, &conv)
	if !strings.Contains(conv.Messages[1].Content, "| a | b |") || conv.Messages[1].Content != md {
		t.Errorf("assistant content = %q", conv.Messages[1].Content)
	}
}
