package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/llm"
	"github.com/kalambet/sonarchat/internal/session"
)

const defaultScope = "local"

const chatHelp = `Start an interactive chat against the configured store.

Lines starting with / are commands, anything else is sent to the model:
  /new            start a new conversation
  /list           list conversations
  /switch ID      switch to a conversation (an unambiguous id prefix is enough)
  /delete ID      delete a conversation
  /clear          clear the current conversation
  /model [NAME]   show or change the model
  /use [NAME]     show or change the instruction profile
  /quit           leave`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long:  chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		local, cfg, err := openLocal(cmd.Context(), scope)
		if err != nil {
			return err
		}
		defer local.Close()

		return runChat(cmd.Context(), local.ctrl, local.state, cfg.Auth.DefaultAPIKey, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().String("scope", defaultScope, "storage scope to chat in")
}

type repl struct {
	ctx  context.Context
	ctrl *session.Controller
	st   *session.State
	in   *bufio.Scanner
	out  io.Writer
}

// runChat reads lines from in until EOF or /quit. With an empty apiKey the
// user is asked for a password or key first.
func runChat(ctx context.Context, ctrl *session.Controller, st *session.State, apiKey string, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	r := &repl{ctx: ctx, ctrl: ctrl, st: st, in: sc, out: out}

	if err := r.login(apiKey); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s model %s, profile %s. /help for commands.\n",
		colorize(colorBold, "sonarchat"), st.Model, st.Instructions.Active().Name)

	for {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(line); quit {
				return nil
			}
			continue
		}

		reply, err := ctrl.Send(ctx, st, line)
		if err != nil {
			r.fail(err)
			continue
		}
		printTurn(out, "sonar", reply)
	}
}

func (r *repl) login(apiKey string) error {
	if apiKey != "" {
		return r.ctrl.LoginWithKey(r.st, apiKey)
	}
	fmt.Fprint(r.out, "Password or API key: ")
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return err
		}
		return errors.New("no credential supplied")
	}
	if err := r.ctrl.Login(r.st, r.in.Text()); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// command runs one slash command and reports whether the loop should end.
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/new":
		id := r.ctrl.NewConversation(r.ctx, r.st)
		fmt.Fprintf(r.out, "started conversation %s\n", shortID(id))
	case "/list":
		writeConversationList(r.out, r.st.Summaries())
	case "/switch":
		id, err := resolveID(r.st, arg)
		if err == nil {
			err = r.ctrl.SelectConversation(r.st, id)
		}
		if err != nil {
			r.fail(err)
			return false
		}
		writeConversation(r.out, *r.st.Current())
	case "/delete":
		id, err := resolveID(r.st, arg)
		if err == nil {
			err = r.ctrl.DeleteConversation(r.ctx, r.st, id)
		}
		if err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "deleted %s, now in %q\n", shortID(id), r.st.Current().Title)
	case "/clear":
		r.ctrl.ClearConversation(r.ctx, r.st)
		fmt.Fprintln(r.out, "conversation cleared")
	case "/model":
		if arg == "" {
			fmt.Fprintf(r.out, "model %s (available: %s)\n", r.st.Model, strings.Join(llm.Models, ", "))
			return false
		}
		if err := r.ctrl.SetModel(r.st, arg); err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "model set to %s\n", arg)
	case "/use":
		if arg == "" {
			writeInstructionList(r.out, r.st.Instructions.Profiles(), r.st.Instructions.Active().Name)
			return false
		}
		if err := r.ctrl.SelectInstruction(r.ctx, r.st, arg); err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "using profile %s\n", arg)
	default:
		r.fail(fmt.Errorf("unknown command %s (try /help)", name))
	}
	return false
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, colorize(colorRed, "error: "+err.Error()))
}

// resolveID matches an exact id, "current", or a unique id prefix.
func resolveID(st *session.State, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("missing conversation id")
	}
	if ref == "current" {
		return st.CurrentID, nil
	}
	if conversation.Find(st.Conversations, ref) >= 0 {
		return ref, nil
	}

	var match string
	for _, c := range st.Conversations {
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("conversation prefix %q is ambiguous", ref)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", session.ErrUnknownConversation, ref)
	}
	return match, nil
}
