package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/sonarchat/internal/api"
	"github.com/kalambet/sonarchat/internal/config"
	"github.com/kalambet/sonarchat/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// sweepInterval is how often idle sessions are evicted for a given TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > 10*time.Minute {
		iv = 10 * time.Minute
	}
	return iv
}

func runServer() error {
	fmt.Fprintf(stderr, "sonarchat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	client := newAPIClient(cfg)
	if err := client.health(context.Background()); err == nil {
		printWarning("sonarchat is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()
	slog.Info("storage ready", "backend", cfg.Storage.Backend)

	if cfg.Auth.SharedSecret == "" {
		slog.Info("shared password disabled; users must supply their own API key")
	} else if cfg.Auth.DefaultAPIKey == "" {
		slog.Warn("shared password set but no default API key; password logins will fail")
	}

	sessions := session.NewManager(backend, newController(cfg), cfg.Server.SessionTTL)
	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewHandler(api.Deps{
			Sessions:      sessions,
			SecureCookies: cfg.Server.SecureCookies,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(stderr, "sonarchat listening on http://%s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval(cfg.Server.SessionTTL))
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(stderr, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := newAPIClient(cfg)
	if err := client.health(ctx); err != nil {
		printStatus("Server", "stopped")
	} else {
		printStatus("Server", "running on http://%s", cfg.Server.Addr())
		var models modelsResponse
		if err := client.getJSON(ctx, "/api/models", &models); err == nil {
			printStatus("Models", "%s (default %s)", strings.Join(models.ids(), ", "), models.Default)
		}
	}

	printStatus("Default model", "%s", cfg.LLM.DefaultModel)
	printStatus("LLM endpoint", "%s", cfg.LLM.BaseURL)
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		printStatus("Storage", "redis at %s (db %d)", cfg.Storage.RedisAddr, cfg.Storage.RedisDB)
	case config.BackendMemory:
		printStatus("Storage", "memory (not persisted)")
	default:
		printStatus("Storage", "sqlite in %s", cfg.Storage.DataDir)
	}
	printStatus("Shared password", "%s", enabledLabel(cfg.Auth.SharedSecret != ""))
	printStatus("Default API key", "%s", enabledLabel(cfg.Auth.DefaultAPIKey != ""))
	printStatus("Session TTL", "%s", cfg.Server.SessionTTL)
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "configured"
	}
	return "not set"
}
