package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skosovsky/glmtools/agent"
	"github.com/skosovsky/glmtools/conversation"
	"github.com/skosovsky/glmtools/generate"
)

var (
	assistantColor = color.New(color.FgCyan)
	toolColor      = color.New(color.FgGreen)
	resultColor    = color.New(color.FgMagenta)
	errorColor     = color.New(color.FgRed)
	dimColor       = color.New(color.Faint)
)

const chatHelp = `Commands:
  /mode chat|tool  switch between plain chat and tool use
  /retry           regenerate the last answer
  /clear           start a new conversation
  /history         show the conversation
  /quit            exit`

func newChatCmd(flags *rootFlags) *cobra.Command {
	var (
		modeName    string
		historyFile string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := agent.ParseMode(modeName)
			if err != nil {
				return err
			}
			a, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			model, err := a.model()
			if err != nil {
				return err
			}
			r := &repl{
				agent:   a.agent(model, reg),
				history: conversation.NewHistory(),
				mode:    mode,
				params:  a.cfg.Generation,
				out:     cmd.OutOrStdout(),
			}
			return r.run(cmd.Context(), historyFile)
		},
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", "chat", "Start in chat or tool mode")
	cmd.Flags().StringVar(&historyFile, "history-file", defaultHistoryFile(), "Readline history file")
	return cmd
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".glmtools_history")
}

// repl is one terminal conversation.
type repl struct {
	agent   *agent.Agent
	history *conversation.History
	mode    agent.Mode
	params  generate.Params
	out     io.Writer
}

func (r *repl) prompt() string {
	return color.GreenString("%s> ", r.mode)
}

func (r *repl) run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.prompt(),
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(r.out, dimColor.Sprint(chatHelp))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintln(r.out, errorColor.Sprint(err))
		}
		if quit {
			return nil
		}
		rl.SetPrompt(r.prompt())
	}
}

// handle runs one input line. Ctrl+C while a reply streams abandons that reply.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	err := r.agent.Ask(turnCtx, r.mode, r.history, line, r.params, r.render)
	fmt.Fprintln(r.out)
	return false, err
}

func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		r.history.Reset()
		fmt.Fprintln(r.out, dimColor.Sprint("conversation cleared"))
	case "/retry":
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		err := r.agent.Retry(turnCtx, r.mode, r.history, r.params, r.render)
		fmt.Fprintln(r.out)
		return false, err
	case "/mode":
		mode, err := agent.ParseMode(arg)
		if err != nil {
			return false, err
		}
		if mode != r.mode {
			r.mode = mode
			r.history.Reset()
		}
		fmt.Fprintln(r.out, dimColor.Sprintf("mode: %s", r.mode))
	case "/history":
		for _, e := range r.history.Entries() {
			fmt.Fprintf(r.out, "%s %s\n", dimColor.Sprintf("[%s]", e.Role), e.DisplayText())
		}
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

// render prints agent events as they arrive.
func (r *repl) render(e agent.Event) error {
	switch e.Kind {
	case agent.EventToken:
		u := e.Update
		if u.Delta != "" {
			fmt.Fprint(r.out, assistantColor.Sprint(u.Delta))
		}
		if u.Final && u.Message != "" {
			fmt.Fprintln(r.out)
			fmt.Fprint(r.out, errorColor.Sprint(u.Message))
		}
	case agent.EventToolCall:
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, toolColor.Sprintf("Calling tool `%s` with %v", e.Call.Name, e.Call.Params))
	case agent.EventObservation:
		entry := conversation.Entry{Role: conversation.RoleObservation, Content: e.Observation}
		fmt.Fprintln(r.out, resultColor.Sprint(entry.DisplayText()))
	}
	return nil
}
