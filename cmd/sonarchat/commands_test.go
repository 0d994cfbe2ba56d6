package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/sonarchat/internal/config"
	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/credential"
	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/kv"
	"github.com/kalambet/sonarchat/internal/llm"
	"github.com/kalambet/sonarchat/internal/session"
	"github.com/kalambet/sonarchat/internal/storage"
)

var ctx = context.Background()

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	model  string
	apiKey string
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, _ []llm.Message, model, apiKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = model
	f.apiKey = apiKey
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestChat(t *testing.T, fc *fakeCompleter) (*session.Controller, *session.State) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })

	policy := credential.Policy{SharedSecret: "letmein", DefaultAPIKey: "pplx-shared"}
	ctrl := session.NewController(fc, policy, "")
	return ctrl, ctrl.Open(ctx, kv.NewMemory().Scope("test"))
}

func TestRunChat_PromptsForCredential(t *testing.T) {
	fc := &fakeCompleter{reply: "**Blue Dream** is a hybrid."}
	ctrl, st := newTestChat(t, fc)

	in := strings.NewReader("pplx-mine\nTell me about Blue Dream\n/quit\n")
	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "", in, &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	if !strings.Contains(out.String(), "Password or API key:") {
		t.Errorf("output missing credential prompt:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "sonar> **Blue Dream** is a hybrid.") {
		t.Errorf("output missing reply:\n%s", out.String())
	}
	if fc.apiKey != "pplx-mine" {
		t.Errorf("api key = %q, want pplx-mine", fc.apiKey)
	}
	if got := st.Current().Title; got != "Tell me about Blue Dream" {
		t.Errorf("title = %q", got)
	}
	if n := len(st.Current().Messages); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
}

func TestRunChat_SharedPassword(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	ctrl, st := newTestChat(t, fc)

	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "", strings.NewReader("letmein\nhi\n"), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if fc.apiKey != "pplx-shared" {
		t.Errorf("api key = %q, want the shared default key", fc.apiKey)
	}
}

func TestRunChat_RejectedCredential(t *testing.T) {
	ctrl, st := newTestChat(t, &fakeCompleter{})

	err := runChat(ctx, ctrl, st, "", strings.NewReader("wrong\nhello\n"), &bytes.Buffer{})
	if !errors.Is(err, credential.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if st.Authenticated {
		t.Error("state should not be authenticated")
	}
}

func TestRunChat_NoCredential(t *testing.T) {
	ctrl, st := newTestChat(t, &fakeCompleter{})

	if err := runChat(ctx, ctrl, st, "", strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error when input ends before a credential")
	}
}

func TestRunChat_ConfiguredKeySkipsPrompt(t *testing.T) {
	fc := &fakeCompleter{reply: "hello back"}
	ctrl, st := newTestChat(t, fc)

	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "pplx-config", strings.NewReader("hello\n"), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if strings.Contains(out.String(), "Password") {
		t.Error("should not prompt when a key is configured")
	}
	if fc.apiKey != "pplx-config" {
		t.Errorf("api key = %q", fc.apiKey)
	}
}

func TestRunChat_APIErrorKeepsLoop(t *testing.T) {
	fc := &fakeCompleter{err: &llm.Error{Kind: llm.ServerError, Status: 503}}
	ctrl, st := newTestChat(t, fc)

	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "pplx-k", strings.NewReader("first\n/model\n"), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if !strings.Contains(out.String(), "error: server_error (HTTP 503)") {
		t.Errorf("output missing API error:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "model sonar (available:") {
		t.Errorf("loop should continue after an API error:\n%s", out.String())
	}
	if n := len(st.Current().Messages); n != 1 {
		t.Errorf("messages = %d, want the user message kept", n)
	}
}

func TestRunChat_Commands(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	ctrl, st := newTestChat(t, fc)

	input := strings.Join([]string{
		"/new",
		"/model bogus",
		"/model sonar-pro",
		"/use Missing",
		"/use Default",
		"/bogus",
		"hi",
		"/clear",
		"/quit",
		"never sent",
	}, "\n")
	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "pplx-k", strings.NewReader(input), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"started conversation",
		"error: unknown model",
		"model set to sonar-pro",
		"error: " + instructions.ErrNotFound.Error(),
		"using profile Default",
		"unknown command /bogus",
		"conversation cleared",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if len(st.Conversations) != 2 {
		t.Errorf("conversations = %d, want 2", len(st.Conversations))
	}
	if fc.calls != 1 {
		t.Errorf("completions = %d, want 1 (nothing after /quit)", fc.calls)
	}
	if fc.model != "sonar-pro" {
		t.Errorf("model = %q, want sonar-pro", fc.model)
	}
	if cur := st.Current(); len(cur.Messages) != 0 || cur.Title != conversation.Placeholder {
		t.Errorf("current after /clear = %+v", cur)
	}
}

func seedConversations(st *session.State) {
	st.Conversations = []conversation.Conversation{
		{ID: "aaaa1111", Title: "Indica picks", Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "Indica picks"},
			{Role: conversation.RoleAssistant, Content: "Try Northern Lights."},
		}},
		{ID: "aaaa2222", Title: "Sativa picks", Messages: []conversation.Message{}},
		{ID: "bbbb3333", Title: "Terpenes", Messages: []conversation.Message{}},
	}
	st.CurrentID = "aaaa1111"
}

func TestRunChat_SwitchAndDelete(t *testing.T) {
	ctrl, st := newTestChat(t, &fakeCompleter{})
	seedConversations(st)

	input := "/switch bbbb\n/switch aaaa\n/delete aaaa1\n/list\n/quit\n"
	var out bytes.Buffer
	if err := runChat(ctx, ctrl, st, "pplx-k", strings.NewReader(input), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "is ambiguous") {
		t.Errorf("expected ambiguous prefix error:\n%s", got)
	}
	if !strings.Contains(got, "deleted aaaa1111") {
		t.Errorf("expected delete confirmation:\n%s", got)
	}
	if st.CurrentID != "bbbb3333" {
		t.Errorf("current = %q, want bbbb3333", st.CurrentID)
	}
	if len(st.Conversations) != 2 {
		t.Errorf("conversations = %d, want 2", len(st.Conversations))
	}
	if !strings.Contains(got, "* bbbb3333  Terpenes") {
		t.Errorf("list should mark the current conversation:\n%s", got)
	}
}

func TestResolveID(t *testing.T) {
	_, st := newTestChat(t, &fakeCompleter{})
	seedConversations(st)

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"aaaa2222", "aaaa2222", false},
		{"current", "aaaa1111", false},
		{"bb", "bbbb3333", false},
		{"aaaa", "", true},
		{"zzzz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveID(st, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("id = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := resolveID(st, "zzzz"); !errors.Is(err, session.ErrUnknownConversation) {
		t.Errorf("unknown id err = %v, want ErrUnknownConversation", err)
	}
}

func TestWriteConversation(t *testing.T) {
	_, st := newTestChat(t, &fakeCompleter{})
	seedConversations(st)

	var out bytes.Buffer
	writeConversation(&out, st.Conversations[0])
	want := "Indica picks  aaaa1111\nyou> Indica picks\nsonar> Try Northern Lights.\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	writeConversation(&out, st.Conversations[1])
	if !strings.Contains(out.String(), "(no messages)") {
		t.Errorf("empty conversation output = %q", out.String())
	}
}

func TestWriteInstructionList(t *testing.T) {
	_, st := newTestChat(t, &fakeCompleter{})
	if err := st.Instructions.Create("Short", "Be brief.\nReally brief."); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	writeInstructionList(&out, st.Instructions.Profiles(), st.Instructions.Active().Name)
	if !strings.Contains(out.String(), "* Short  Be brief.\n") {
		t.Errorf("active profile should be marked with its first line:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "  Default  ") {
		t.Errorf("Default should be listed:\n%s", out.String())
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 10); got != "short" {
		t.Errorf("preview = %q", got)
	}
	if got := preview("ééééé", 3); got != "ééé..." {
		t.Errorf("preview = %q, want rune-safe cut", got)
	}
	if got := preview("one\ntwo", 10); got != "one" {
		t.Errorf("preview = %q, want first line", got)
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{24 * time.Hour, 10 * time.Minute},
		{20 * time.Minute, 5 * time.Minute},
		{2 * time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.ttl); got != tt.want {
			t.Errorf("sweepInterval(%s) = %s, want %s", tt.ttl, got, tt.want)
		}
	}
}

func TestOpenBackend(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		b, err := openBackend(config.Config{Storage: config.StorageConfig{Backend: config.BackendMemory}})
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		if _, ok := b.(*kv.Memory); !ok {
			t.Errorf("backend = %T, want *kv.Memory", b)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		b, err := openBackend(config.Config{Storage: config.StorageConfig{Backend: config.BackendSQLite, DataDir: t.TempDir()}})
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		if _, ok := b.(*storage.Store); !ok {
			t.Errorf("backend = %T, want *storage.Store", b)
		}
		if err := b.Scope("s").Set(ctx, "k", "v"); err != nil {
			t.Fatalf("Set: %v", err)
		}
	})
}

func newTestAPIClient(t *testing.T, handler http.HandlerFunc) *apiClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
}

func TestAPIClient_Health(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if err := client.health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestAPIClient_HealthDegraded(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"starting"}`))
	})
	if err := client.health(ctx); err == nil || !strings.Contains(err.Error(), "starting") {
		t.Fatalf("err = %v, want reported status", err)
	}
}

func TestAPIClient_Stopped(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	ts.Close()

	err := client.health(ctx)
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestAPIClient_Models(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[{"id":"sonar"},{"id":"sonar-pro"}],"default":"sonar"}`))
	})

	var models modelsResponse
	if err := client.getJSON(ctx, "/api/models", &models); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if got := strings.Join(models.ids(), ","); got != "sonar,sonar-pro" {
		t.Errorf("ids = %q", got)
	}
	if models.Default != "sonar" {
		t.Errorf("default = %q", models.Default)
	}
}

func TestAPIClient_ErrorStatus(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	var v map[string]any
	err := client.getJSON(ctx, "/api/models", &v)
	if err == nil || !strings.Contains(err.Error(), "server returned 500") {
		t.Fatalf("err = %v, want status in error", err)
	}
}

func TestPrintHelpers(t *testing.T) {
	old, oldColor := stderr, noColor
	defer func() { stderr, noColor = old, oldColor }()

	var buf bytes.Buffer
	stderr = &buf
	noColor = true

	printSuccess("Created profile %s", "Short")
	printWarning("careful")
	printStatus("Server", "running on %s", "127.0.0.1:8501")

	want := "✓ Created profile Short\n⚠ careful\n  Server: running on 127.0.0.1:8501\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"config", "set", "no.such.key", "x"})
	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Fatalf("err = %v, want unknown config key", err)
	}
}

func TestIsSecretKey(t *testing.T) {
	if !isSecretKey("auth.default_api_key") {
		t.Error("auth.default_api_key should be secret")
	}
	if isSecretKey("server.port") {
		t.Error("server.port should not be secret")
	}
}
