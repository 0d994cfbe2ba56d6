package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
}

func (m mockKeychain) Get(service, account string) (string, error) {
	if v, ok := m.values[service+"/"+account]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `# empty config`)

	cfg, err := loadFromPath(path, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8501 {
		t.Errorf("Server addr = %s, want 127.0.0.1:8501", cfg.Server.Addr())
	}
	if cfg.Server.SessionTTL != 24*time.Hour {
		t.Errorf("Server.SessionTTL = %v, want 24h", cfg.Server.SessionTTL)
	}
	if cfg.Server.SecureCookies {
		t.Error("Server.SecureCookies = true, want false")
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "sonarchat") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.LLM.BaseURL != "https://api.perplexity.ai" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.DefaultModel != "sonar" {
		t.Errorf("LLM.DefaultModel = %q", cfg.LLM.DefaultModel)
	}
	if cfg.LLM.Timeout != 0 {
		t.Errorf("LLM.Timeout = %v, want no timeout", cfg.LLM.Timeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestMissingFile verifies a missing config file is not an error and nothing is required.
func TestMissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "nope.toml"), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.SharedSecret != "" || cfg.Auth.DefaultAPIKey != "" {
		t.Errorf("Auth = %+v, want empty", cfg.Auth)
	}
}

// TestTOMLParsing verifies that all fields are correctly read from a TOML file.
func TestTOMLParsing(t *testing.T) {
	clearEnv(t)
	content := `
[server]
host = "0.0.0.0"
port = 9000
session_ttl = "2h"
secure_cookies = true

[storage]
backend = "redis"
data_dir = "/tmp/sonarchat-test"
redis_addr = "redis:6380"
redis_db = 3

[llm]
base_url = "http://localhost:9999"
default_model = "sonar-pro"
timeout = "90s"

[auth]
shared_secret = "ignored-in-file"

[log]
level = "debug"
`
	path := writeTempConfig(t, content)

	cfg, err := loadFromPath(path, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:9000" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.SessionTTL != 2*time.Hour {
		t.Errorf("Server.SessionTTL = %v", cfg.Server.SessionTTL)
	}
	if !cfg.Server.SecureCookies {
		t.Error("Server.SecureCookies = false")
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "redis:6380" || cfg.Storage.RedisDB != 3 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.DataDir != "/tmp/sonarchat-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.LLM.BaseURL != "http://localhost:9999" || cfg.LLM.DefaultModel != "sonar-pro" || cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Auth.SharedSecret != "" {
		t.Errorf("secret read from config file: %q", cfg.Auth.SharedSecret)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
[server]
port = 9000
`)

	t.Setenv("SONARCHAT_SERVER_PORT", "9100")
	t.Setenv("SONARCHAT_SERVER_SECURE_COOKIES", "true")
	t.Setenv("SONARCHAT_LLM_TIMEOUT", "30s")
	t.Setenv("SONARCHAT_AUTH_SHARED_SECRET", "env-secret")

	cfg, err := loadFromPath(path, mockKeychain{values: map[string]string{"sonarchat/auth_shared_secret": "keychain-secret"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if !cfg.Server.SecureCookies {
		t.Error("Server.SecureCookies = false")
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Auth.SharedSecret != "env-secret" {
		t.Errorf("SharedSecret = %q, want env value over keychain", cfg.Auth.SharedSecret)
	}
}

// TestBadEnvValueKeepsDefault verifies unparsable env values are ignored.
func TestBadEnvValueKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SONARCHAT_SERVER_PORT", "eighty")
	t.Setenv("SONARCHAT_SERVER_SESSION_TTL", "forever")

	cfg, err := loadFromPath(writeTempConfig(t, ""), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8501 || cfg.Server.SessionTTL != 24*time.Hour {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

// TestKeychainFallback verifies the secret store is consulted when no secret is in env.
func TestKeychainFallback(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `# no secrets in file`)

	kc := mockKeychain{values: map[string]string{
		"sonarchat/auth_shared_secret":   "kc-secret",
		"sonarchat/auth_default_api_key": "pplx-kc",
	}}
	cfg, err := loadFromPath(path, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Auth.SharedSecret != "kc-secret" || cfg.Auth.DefaultAPIKey != "pplx-kc" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

// TestValidation verifies invalid values fail the load.
func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "backend", content: "[storage]\nbackend = \"mongo\"\n", want: "storage.backend"},
		{name: "port", content: "[server]\nport = 70000\n", want: "server.port"},
		{name: "log level", content: "[log]\nlevel = \"loud\"\n", want: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.content), mockKeychain{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	b := newFileBackend(path)

	secrets := map[string]string{}
	setSecret := func(service, account, value string) error {
		secrets[service+"/"+account] = value
		return nil
	}

	for key, value := range map[string]string{
		"server.port":           "9200",
		"server.secure_cookies": "true",
		"llm.timeout":           "45s",
		"llm.default_model":     "sonar-pro",
		"auth.default_api_key":  "pplx-stored",
	} {
		if err := setKey(b, setSecret, key, value); err != nil {
			t.Fatalf("setKey(%s): %v", key, err)
		}
	}

	cfg, err := loadFromPath(path, mockKeychain{values: secrets})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 9200 || !cfg.Server.SecureCookies || cfg.LLM.Timeout != 45*time.Second || cfg.LLM.DefaultModel != "sonar-pro" {
		t.Errorf("reloaded cfg = %+v", cfg)
	}
	if cfg.Auth.DefaultAPIKey != "pplx-stored" {
		t.Errorf("DefaultAPIKey = %q", cfg.Auth.DefaultAPIKey)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "pplx-stored") {
		t.Error("secret written to config file")
	}
	if !strings.Contains(string(data), "[server]") {
		t.Errorf("config file not nested by table:\n%s", data)
	}
}

func TestSetKey_Errors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.toml"))
	noSecrets := func(string, string, string) error { return errors.New("no store") }

	tests := []struct{ key, value string }{
		{"server.port", "abc"},
		{"server.secure_cookies", "maybe"},
		{"llm.timeout", "soon"},
		{"nope.key", "x"},
		{"auth.shared_secret", "x"},
	}
	for _, tt := range tests {
		if err := setKey(b, noSecrets, tt.key, tt.value); err == nil {
			t.Errorf("setKey(%s, %s) = nil, want error", tt.key, tt.value)
		}
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Auth.SharedSecret = "hunter2"

	for _, ki := range ShowAll(cfg) {
		if ki.Key == "auth.shared_secret" {
			if ki.Value != "********" || !ki.Secret {
				t.Errorf("shared secret shown as %q", ki.Value)
			}
		}
		if ki.Key == "auth.default_api_key" && ki.Value != "" {
			t.Errorf("unset secret shown as %q", ki.Value)
		}
		if strings.Contains(ki.Value, "hunter2") {
			t.Error("secret leaked")
		}
	}
	if len(ValidKeys()) != len(specs) {
		t.Errorf("ValidKeys() = %d keys, want %d", len(ValidKeys()), len(specs))
	}
}
