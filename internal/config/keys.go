package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "SONARCHAT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "SONARCHAT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.session_ttl", typ: kDuration, env: "SONARCHAT_SERVER_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Server.SessionTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Server.SessionTTL },
	},
	{
		key: "server.secure_cookies", typ: kBool, env: "SONARCHAT_SERVER_SECURE_COOKIES",
		apply:   func(cfg *Config, v any) { cfg.Server.SecureCookies = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.SecureCookies },
	},
	{
		key: "storage.backend", typ: kString, env: "SONARCHAT_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SONARCHAT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.redis_addr", typ: kString, env: "SONARCHAT_STORAGE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisAddr },
	},
	{
		key: "storage.redis_db", typ: kInt, env: "SONARCHAT_STORAGE_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisDB = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RedisDB },
	},
	{
		key: "llm.base_url", typ: kString, env: "SONARCHAT_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.default_model", typ: kString, env: "SONARCHAT_LLM_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.DefaultModel },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "SONARCHAT_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "auth.shared_secret", typ: kString, env: "SONARCHAT_AUTH_SHARED_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.SharedSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.SharedSecret },
	},
	{
		key: "auth.default_api_key", typ: kString, env: "SONARCHAT_AUTH_DEFAULT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.DefaultAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.DefaultAPIKey },
	},
	{
		key: "log.level", typ: kString, env: "SONARCHAT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// account is the secret store account name for a secret key.
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// applySecrets fills secrets still empty after env overrides from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(Service, s.account()); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
