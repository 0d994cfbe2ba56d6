package config

import (
	"fmt"
	"strings"
	"time"
)

// Service is the keychain service name secrets are stored under.
const Service = "sonarchat"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	LLM     LLMConfig
	Auth    AuthConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	SessionTTL    time.Duration
	SecureCookies bool
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Backend   string
	DataDir   string
	RedisAddr string
	RedisDB   int
}

type LLMConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

type AuthConfig struct {
	SharedSecret  string
	DefaultAPIKey string
}

type LogConfig struct {
	Level string
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8501,
			SessionTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			DataDir:   defaultDataDir(),
			RedisAddr: "localhost:6379",
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.perplexity.ai",
			DefaultModel: "sonar",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the TOML config file, environment variables
// and the platform secret store.
//
// The file lives at $XDG_CONFIG_HOME/sonarchat/config.toml. Secrets are never
// read from it; they come from SONARCHAT_* environment variables, the macOS
// Keychain (service: sonarchat) or, elsewhere, a secrets.json file under
// $XDG_DATA_HOME/sonarchat.
//
// Environment variables (SONARCHAT_*) override file values.
func Load() (Config, error) {
	return loadFromPath(configFilePath(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadFromPath(path string, kc keychain) (Config, error) {
	return loadWith(newFileBackend(path), kc)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q: want one of %s, %s, %s",
			cfg.Storage.Backend, BackendSQLite, BackendRedis, BackendMemory)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	return nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	return keychainGet(service, account)
}
