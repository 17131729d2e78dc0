package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/skosovsky/glmtools/conversation"
)

// Cursor is appended to the display text while a reply is still streaming.
const Cursor = "▌"

var sentinelPattern = regexp.MustCompile(`^<\|[^|]*\|>$`)

// State is the phase of a Turn.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateTruncatedInput
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateTruncatedInput:
		return "truncated_input"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no more updates follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateTruncatedInput || s == StateError
}

// Update is one step of a turn delivered to the caller.
type Update struct {
	// Delta is the new visible text since the previous update.
	Delta string
	// Display is the cleaned reply so far, with Cursor while streaming.
	Display string
	// Special is set on the final update when a sentinel ended the turn.
	Special bool
	Final   bool
	State   State
	// Message carries a notice for the user: the overflow text, a model error or an unexpected sentinel.
	Message string
}

// Result summarizes a finished turn.
type Result struct {
	State State
	// Raw is the accumulated reply with sentinels excluded; Text is its postprocessed form.
	Raw  string
	Text string
	// HandOff is the sentinel that handed the turn back to the caller, if any.
	HandOff string
	// Unexpected is the sentinel that stopped the turn early, if any.
	Unexpected   string
	PromptTokens int
	Err          error
}

// Turn is one assistant reply in progress. It is not safe for concurrent use.
type Turn struct {
	loop *Loop
	ctx  context.Context
	req  Request

	state      State
	stream     Stream
	cumulative string
	buf        strings.Builder
	result     Result
	finished   bool
}

// State returns the current phase.
func (t *Turn) State() State { return t.state }

// Result returns the outcome. It is complete once Next has returned io.EOF or Run has returned.
func (t *Turn) Result() Result { return t.result }

// Next advances the turn and returns the next update. After the final update it returns io.EOF.
// If ctx (or the context the turn was started with) ends first, the turn is abandoned and the
// context error is returned.
func (t *Turn) Next(ctx context.Context) (Update, error) {
	if t.finished {
		return Update{}, io.EOF
	}
	if t.state == StateIdle {
		if u, done := t.begin(ctx); done {
			return u, nil
		}
	}
	for {
		if err := t.ctxErr(ctx); err != nil {
			t.abandon(err)
			return Update{}, err
		}
		frag, err := t.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return t.finish(StateDone, ""), nil
			}
			if cerr := t.ctxErr(ctx); cerr != nil {
				t.abandon(cerr)
				return Update{}, cerr
			}
			t.loop.logger.Error("model stream failed", "error", err)
			t.result.Err = err
			return t.finish(StateError, err.Error()), nil
		}
		if strings.HasSuffix(frag.Text, "�") {
			continue
		}
		delta, ok := strings.CutPrefix(frag.Text, t.cumulative)
		if !ok {
			delta = frag.Text
		}
		t.cumulative = frag.Text
		stripped := strings.TrimSpace(delta)
		if stripped != "" && (frag.Special || sentinelPattern.MatchString(stripped)) {
			return t.sentinel(stripped), nil
		}
		if delta == "" {
			continue
		}
		t.buf.WriteString(delta)
		return Update{
			Delta:   delta,
			Display: conversation.Postprocess(t.buf.String() + Cursor),
			State:   StateStreaming,
		}, nil
	}
}

// Run pulls every update and passes it to yield. An error from yield abandons the turn and is
// returned.
func (t *Turn) Run(ctx context.Context, yield func(Update) error) (Result, error) {
	for {
		u, err := t.Next(ctx)
		if errors.Is(err, io.EOF) {
			return t.result, nil
		}
		if err != nil {
			return t.result, err
		}
		if yield != nil {
			if err := yield(u); err != nil {
				t.abandon(err)
				return t.result, err
			}
		}
	}
}

// Close abandons an unfinished turn: the model stream is released and nothing is recorded.
// Closing a finished turn is a no-op.
func (t *Turn) Close() error {
	if t.finished {
		return nil
	}
	return t.abandon(nil)
}

func (t *Turn) ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ctx != nil {
		return t.ctx.Err()
	}
	return nil
}

// begin renders the prompt, applies the context window policy and opens the model stream.
// It reports done when the turn ended without streaming.
func (t *Turn) begin(ctx context.Context) (Update, bool) {
	l := t.loop
	if err := t.ctxErr(ctx); err != nil {
		t.abandon(err)
		return Update{}, false
	}
	history := t.req.History.Entries()
	text, err := conversation.RenderPrompt(t.req.System, t.req.Tools, history)
	if err != nil {
		t.result.Err = err
		return t.finish(StateError, err.Error()), true
	}
	tokens, err := l.counter.CountTokens(text)
	if err != nil {
		t.result.Err = fmt.Errorf("count prompt tokens: %w", err)
		return t.finish(StateError, t.result.Err.Error()), true
	}
	t.result.PromptTokens = tokens
	maxNew := t.req.Params.MaxNewTokens
	if tokens+maxNew >= l.window {
		msg := fmt.Sprintf("Current input sequence length %d plus max_new_tokens %d is too long. "+
			"The maximum model sequence length is %d. You may adjust the generation parameter to enable longer chat history.",
			tokens, maxNew, l.window)
		l.logger.Warn("prompt does not fit context window", "prompt_tokens", tokens, "max_new_tokens", maxNew, "window", l.window)
		t.result.Err = fmt.Errorf("%w: %d + %d >= %d", ErrContextOverflow, tokens, maxNew, l.window)
		return t.finish(StateTruncatedInput, msg), true
	}
	l.logger.Debug("turn started", "prompt_tokens", tokens, "tools", len(t.req.Tools), "entries", len(history))
	stream, err := l.model.Generate(ctx, Prompt{
		Text:    text,
		System:  t.req.System,
		Tools:   t.req.Tools,
		History: history,
	}, t.req.Params)
	if err != nil {
		if cerr := t.ctxErr(ctx); cerr != nil {
			t.abandon(cerr)
			return Update{}, false
		}
		l.logger.Error("model generate failed", "error", err)
		t.result.Err = err
		return t.finish(StateError, err.Error()), true
	}
	t.stream = stream
	t.state = StateStreaming
	return Update{}, false
}

func (t *Turn) sentinel(tok string) Update {
	switch {
	case tok == conversation.SentinelUser:
		return t.finish(StateDone, "")
	case slices.Contains(t.req.HandOff, tok):
		t.result.HandOff = tok
		return t.finish(StateDone, "")
	}
	t.loop.logger.Warn("unexpected sentinel", "sentinel", tok)
	t.result.Unexpected = tok
	t.result.Err = fmt.Errorf("%w: %s", ErrUnexpectedSentinel, tok)
	return t.finish(StateDone, "Unexpected special token: "+tok)
}

// finish ends the turn in state and records the reply for a completed turn.
func (t *Turn) finish(state State, msg string) Update {
	t.closeStream()
	t.state = state
	t.finished = true
	raw := t.buf.String()
	t.result.State = state
	t.result.Raw = raw
	t.result.Text = conversation.Postprocess(raw)
	if state == StateDone && t.result.HandOff == "" {
		t.req.History.Append(conversation.Entry{Role: conversation.RoleAssistant, Content: t.result.Text})
	}
	return Update{
		Display: t.result.Text,
		Special: t.result.HandOff != "" || t.result.Unexpected != "",
		Final:   true,
		State:   state,
		Message: msg,
	}
}

// abandon ends the turn without recording anything.
func (t *Turn) abandon(cause error) error {
	err := t.closeStream()
	if t.finished {
		return err
	}
	t.finished = true
	t.state = StateError
	t.result.State = StateError
	t.result.Raw = t.buf.String()
	t.result.Text = conversation.Postprocess(t.result.Raw)
	if cause != nil {
		t.result.Err = fmt.Errorf("%w: %w", ErrAbandoned, cause)
	} else {
		t.result.Err = ErrAbandoned
	}
	return err
}

func (t *Turn) closeStream() error {
	if t.stream == nil {
		return nil
	}
	err := t.stream.Close()
	t.stream = nil
	return err
}
