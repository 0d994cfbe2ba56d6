package main

import (
	"context"
	"fmt"

	"github.com/kalambet/sonarchat/internal/config"
	"github.com/kalambet/sonarchat/internal/credential"
	"github.com/kalambet/sonarchat/internal/kv"
	"github.com/kalambet/sonarchat/internal/llm"
	"github.com/kalambet/sonarchat/internal/session"
	"github.com/kalambet/sonarchat/internal/storage"
)

// openBackend opens the store selected by storage.backend.
func openBackend(cfg config.Config) (kv.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		b, err := kv.NewRedis(cfg.Storage.RedisAddr, cfg.Storage.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		return b, nil
	case config.BackendMemory:
		return kv.NewMemory(), nil
	default:
		s, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, nil
	}
}

func newController(cfg config.Config) *session.Controller {
	client := llm.NewClientWithBaseURL(cfg.LLM.BaseURL).WithTimeout(cfg.LLM.Timeout)
	policy := credential.Policy{
		SharedSecret:  cfg.Auth.SharedSecret,
		DefaultAPIKey: cfg.Auth.DefaultAPIKey,
	}
	return session.NewController(client, policy, cfg.LLM.DefaultModel)
}

// localSession opens scope directly from the configured store. The caller
// closes the returned backend.
type localSession struct {
	ctrl    *session.Controller
	state   *session.State
	backend kv.Backend
}

func openLocal(ctx context.Context, scope string) (*localSession, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, cfg, err
	}
	ctrl := newController(cfg)
	return &localSession{
		ctrl:    ctrl,
		state:   ctrl.Open(ctx, backend.Scope(scope)),
		backend: backend,
	}, cfg, nil
}

func (l *localSession) Close() {
	if err := l.backend.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}
