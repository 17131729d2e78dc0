// Package agent runs whole user requests on top of the generation loop. In chat mode a request
// is one turn. In tool mode the model may call registered tools: each call is parsed, dispatched
// and its observation fed back before the model continues.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/conversation"
	"github.com/skosovsky/glmtools/generate"
)

// DefaultMaxRounds bounds the tool calls made for one request.
const DefaultMaxRounds = 5

var (
	// ErrEmptyPrompt is returned by Ask for a prompt that is blank after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNothingToRetry is returned by Retry when the history holds no USER entry.
	ErrNothingToRetry = errors.New("no user message to retry")
	// ErrMaxRounds is returned when the model keeps calling tools past the round limit.
	ErrMaxRounds = errors.New("too many tool rounds")
)

// Mode selects how a request is answered.
type Mode int

const (
	ModeChat Mode = iota
	ModeTool
)

func (m Mode) String() string {
	switch m {
	case ModeChat:
		return "chat"
	case ModeTool:
		return "tool"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "chat" or "tool" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chat", "":
		return ModeChat, nil
	case "tool", "tools":
		return ModeTool, nil
	}
	return ModeChat, fmt.Errorf("unknown mode %q (want chat or tool)", s)
}

// EventKind tells what an Event carries.
type EventKind int

const (
	// EventToken carries a generation update.
	EventToken EventKind = iota
	// EventToolCall carries a parsed tool call about to be dispatched.
	EventToolCall
	// EventObservation carries the text returned for a tool call.
	EventObservation
)

// Event is one step of a request.
type Event struct {
	Kind        EventKind
	Round       int
	Update      generate.Update
	Call        glmtools.ToolCall
	Observation string
}

// Agent answers requests against one model and tool registry.
type Agent struct {
	loop      *generate.Loop
	registry  *glmtools.Registry
	parser    ToolCallParser
	maxRounds int
	system    string
	logger    *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithParser replaces the default GLMParser.
func WithParser(p ToolCallParser) Option {
	return func(a *Agent) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithMaxRounds bounds the tool calls made for one request.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithSystemPrompt sets the system text used in chat mode.
func WithSystemPrompt(s string) Option {
	return func(a *Agent) { a.system = s }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New returns an Agent. registry may be nil when only chat mode is used.
func New(loop *generate.Loop, registry *glmtools.Registry, opts ...Option) *Agent {
	a := &Agent{
		loop:      loop,
		registry:  registry,
		parser:    GLMParser{},
		maxRounds: DefaultMaxRounds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask appends prompt to history as a USER entry and answers it in mode. When the prompt does not
// fit the context window the history is left as it was before the call.
func (a *Agent) Ask(ctx context.Context, mode Mode, history *conversation.History, prompt string, params generate.Params, yield func(Event) error) error {
	mark := history.Len()
	state, err := a.ask(ctx, mode, history, prompt, params, yield)
	if state == generate.StateTruncatedInput {
		history.Truncate(mark)
	}
	return err
}

// Reply answers prompt in chat mode.
func (a *Agent) Reply(ctx context.Context, history *conversation.History, prompt string, params generate.Params, yield func(Event) error) error {
	return a.Ask(ctx, ModeChat, history, prompt, params, yield)
}

// Chat answers prompt in tool mode.
func (a *Agent) Chat(ctx context.Context, history *conversation.History, prompt string, params generate.Params, yield func(Event) error) error {
	return a.Ask(ctx, ModeTool, history, prompt, params, yield)
}

// Retry drops the last user message and everything after it, then asks it again. If the retried
// prompt no longer fits the context window the previous answer is kept.
func (a *Agent) Retry(ctx context.Context, mode Mode, history *conversation.History, params generate.Params, yield func(Event) error) error {
	before := history.Entries()
	prompt, ok := history.Retry()
	if !ok {
		return ErrNothingToRetry
	}
	state, err := a.ask(ctx, mode, history, prompt, params, yield)
	if state == generate.StateTruncatedInput {
		history.Reset()
		history.Append(before...)
	}
	return err
}

// ask appends the USER entry and runs the request. It returns the state of the last turn.
func (a *Agent) ask(ctx context.Context, mode Mode, history *conversation.History, prompt string, params generate.Params, yield func(Event) error) (generate.State, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return generate.StateIdle, ErrEmptyPrompt
	}
	history.Append(conversation.Entry{Role: conversation.RoleUser, Content: prompt})
	var (
		state generate.State
		err   error
	)
	if mode == ModeTool {
		state, err = a.runTools(ctx, history, params, yield)
	} else {
		state, err = a.runChat(ctx, history, params, yield)
	}
	if state == generate.StateTruncatedInput {
		a.logger.Warn("request dropped, prompt does not fit the context window")
	}
	return state, err
}

func (a *Agent) runChat(ctx context.Context, history *conversation.History, params generate.Params, yield func(Event) error) (generate.State, error) {
	turn := a.loop.Start(ctx, generate.Request{System: a.system, History: history, Params: params})
	res, err := turn.Run(ctx, tokenYield(yield, 0))
	return res.State, err
}

func (a *Agent) runTools(ctx context.Context, history *conversation.History, params generate.Params, yield func(Event) error) (generate.State, error) {
	var tools []glmtools.Definition
	if a.registry != nil {
		tools = a.registry.Schema()
	}
	for round := range a.maxRounds {
		turn := a.loop.Start(ctx, generate.Request{
			System:  a.system,
			Tools:   tools,
			History: history,
			Params:  params,
			HandOff: []string{conversation.SentinelObservation},
		})
		res, err := turn.Run(ctx, tokenYield(yield, round))
		if err != nil || res.HandOff == "" {
			return res.State, err
		}
		name, body := splitCall(res.Raw)
		history.Append(conversation.Entry{Role: conversation.RoleTool, Tool: name, Content: body})

		observation, err := a.call(ctx, res.Raw, round, yield)
		if err != nil {
			return res.State, err
		}
		history.Append(conversation.Entry{Role: conversation.RoleObservation, Content: observation})
		if err := emit(yield, Event{Kind: EventObservation, Round: round, Observation: observation}); err != nil {
			return res.State, err
		}
	}
	a.logger.Warn("tool round limit reached", "rounds", a.maxRounds)
	return generate.StateDone, fmt.Errorf("%w: limit is %d", ErrMaxRounds, a.maxRounds)
}

// call parses and dispatches one tool call. Parse failures are returned to the model as the
// observation so it can correct itself.
func (a *Agent) call(ctx context.Context, raw string, round int, yield func(Event) error) (string, error) {
	call, err := a.parser.Parse(raw)
	if err != nil {
		a.logger.Warn("tool call not understood", "error", err)
		return "Failed to parse tool call: " + err.Error(), nil
	}
	call.ID = fmt.Sprintf("call_%d", round)
	if err := emit(yield, Event{Kind: EventToolCall, Round: round, Call: call}); err != nil {
		return "", err
	}
	if a.registry == nil {
		return "Tool `" + call.Name + "` not found. Please use a provided tool.", nil
	}
	return a.registry.Dispatch(ctx, call.Name, call.Params), nil
}

func tokenYield(yield func(Event) error, round int) func(generate.Update) error {
	return func(u generate.Update) error {
		return emit(yield, Event{Kind: EventToken, Round: round, Update: u})
	}
}

func emit(yield func(Event) error, e Event) error {
	if yield == nil {
		return nil
	}
	return yield(e)
}

// splitCall separates the tool name line from the call body for the TOOL entry.
func splitCall(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	name, body, ok := strings.Cut(raw, "\n")
	if !ok {
		return "", conversation.Postprocess(raw)
	}
	return strings.TrimSpace(name), conversation.Postprocess(body)
}
