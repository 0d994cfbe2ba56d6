package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/sonarchat/internal/api"
	"github.com/kalambet/sonarchat/internal/config"
	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/session"
)

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			writeConversationList(cmd.OutOrStdout(), l.state.Summaries())
			return nil
		})
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			id, err := resolveID(l.state, args[0])
			if err != nil {
				return err
			}
			writeConversation(cmd.OutOrStdout(), l.state.Conversations[conversation.Find(l.state.Conversations, id)])
			return nil
		})
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			id, err := resolveID(l.state, args[0])
			if err != nil {
				return err
			}
			if err := l.ctrl.DeleteConversation(cmd.Context(), l.state, id); err != nil {
				return err
			}
			printSuccess("Deleted conversation %s", id)
			return nil
		})
	},
}

func init() {
	conversationsCmd.PersistentFlags().String("scope", defaultScope, "storage scope")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

// --- instructions ---

var instructionsCmd = &cobra.Command{
	Use:     "instructions",
	Aliases: []string{"profiles"},
	Short:   "Manage instruction profiles",
}

var instructionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instruction profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			set := l.state.Instructions
			writeInstructionList(cmd.OutOrStdout(), set.Profiles(), set.Active().Name)
			return nil
		})
	},
}

var instructionsAddCmd = &cobra.Command{
	Use:   "add <name> <content>",
	Short: "Create an instruction profile and make it active",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createInstruction(cmd, args[0], args[1])
	},
}

var instructionsImportCmd = &cobra.Command{
	Use:   "import <name> <file>",
	Short: "Create an instruction profile from a text, markdown or PDF file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := instructions.ImportFile(args[1])
		if err != nil {
			return err
		}
		return createInstruction(cmd, args[0], content)
	},
}

var instructionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an instruction profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			if err := l.ctrl.DeleteInstruction(cmd.Context(), l.state, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted profile %s (active: %s)", args[0], l.state.Instructions.Active().Name)
			return nil
		})
	},
}

var instructionsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make an instruction profile active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd, func(l *localSession) error {
			if err := l.ctrl.SelectInstruction(cmd.Context(), l.state, args[0]); err != nil {
				return err
			}
			printSuccess("Active profile: %s", args[0])
			return nil
		})
	},
}

func createInstruction(cmd *cobra.Command, name, content string) error {
	return withLocal(cmd, func(l *localSession) error {
		if err := l.ctrl.CreateInstruction(cmd.Context(), l.state, name, content); err != nil {
			return err
		}
		printSuccess("Created profile %s (%d chars)", strings.TrimSpace(name), len(content))
		return nil
	})
}

func init() {
	instructionsCmd.PersistentFlags().String("scope", defaultScope, "storage scope")
	instructionsCmd.AddCommand(instructionsListCmd)
	instructionsCmd.AddCommand(instructionsAddCmd)
	instructionsCmd.AddCommand(instructionsImportCmd)
	instructionsCmd.AddCommand(instructionsDeleteCmd)
	instructionsCmd.AddCommand(instructionsUseCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		writeConfig(cmd.OutOrStdout(), config.ShowAll(cfg))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if isSecretKey(key) {
			printSuccess("Stored %s in the secret store", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func isSecretKey(key string) bool {
	for _, k := range config.ShowAll(config.Config{}) {
		if k.Key == key {
			return k.Secret
		}
	}
	return false
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve one scope's conversations as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		return runMCP(cmd.Context(), scope)
	},
}

func init() {
	mcpCmd.Flags().String("scope", defaultScope, "storage scope to expose")
}

func runMCP(ctx context.Context, scope string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr only.
	setupLogging(cfg.Log.Level)

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	sessions := session.NewManager(backend, newController(cfg), cfg.Server.SessionTTL)
	sess := sessions.Get(ctx, "mcp", scope)
	if cfg.Auth.DefaultAPIKey != "" {
		err := sess.Do(func(st *session.State) error {
			return sessions.Controller().LoginWithKey(st, cfg.Auth.DefaultAPIKey)
		})
		if err != nil {
			return err
		}
	} else {
		slog.Warn("no default API key configured; the ask tool will fail", "hint", config.SecretHint())
	}

	srv := api.NewMCPServer(api.MCPDeps{Session: sess, Controller: sessions.Controller()})
	slog.Info("MCP server started (stdio transport)", "scope", scope)
	if err := server.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

// --- shared ---

func withLocal(cmd *cobra.Command, fn func(*localSession) error) error {
	scope, _ := cmd.Flags().GetString("scope")
	l, _, err := openLocal(cmd.Context(), scope)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(l)
}

func writeConversationList(w io.Writer, list []session.Summary) {
	for _, s := range list {
		marker := " "
		if s.Current {
			marker = colorize(colorGreen, "*")
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n", marker, colorize(colorBold, shortID(s.ID)), s.Title,
			colorize(colorDim, fmt.Sprintf("(%d messages)", s.Messages)))
	}
}

func writeConversation(w io.Writer, c conversation.Conversation) {
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, c.Title), colorize(colorDim, c.ID))
	if len(c.Messages) == 0 {
		fmt.Fprintln(w, colorize(colorDim, "(no messages)"))
		return
	}
	for _, m := range c.Messages {
		role := "sonar"
		if m.Role == conversation.RoleUser {
			role = "you"
		}
		printTurn(w, role, m.Content)
	}
}

func writeInstructionList(w io.Writer, profiles []instructions.Profile, active string) {
	for _, p := range profiles {
		marker := " "
		if p.Name == active {
			marker = colorize(colorGreen, "*")
		}
		fmt.Fprintf(w, "%s %s  %s\n", marker, colorize(colorBold, p.Name), colorize(colorDim, preview(p.Content, 60)))
	}
}

func writeConfig(w io.Writer, keys []config.KeyInfo) {
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
	}
}

// preview returns the first line of s cut to n runes.
func preview(s string, n int) string {
	line, _, _ := strings.Cut(s, "\n")
	r := []rune(line)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return line
}
