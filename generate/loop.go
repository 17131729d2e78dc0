package generate

import (
	"context"
	"log/slog"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/conversation"
)

// DefaultContextWindow is the model sequence length assumed when none is configured.
const DefaultContextWindow = 8192

// Loop runs turns against one model. It holds no per-conversation state and may be shared.
type Loop struct {
	model   Model
	counter TokenCounter
	window  int
	logger  *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithContextWindow sets the model's maximum sequence length.
func WithContextWindow(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.window = n
		}
	}
}

// WithTokenCounter sets how prompt length is measured. Defaults to RuneCounter.
func WithTokenCounter(c TokenCounter) Option {
	return func(l *Loop) {
		if c != nil {
			l.counter = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop returns a Loop generating with model.
func NewLoop(model Model, opts ...Option) *Loop {
	l := &Loop{
		model:   model,
		counter: RuneCounter{},
		window:  DefaultContextWindow,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ContextWindow returns the configured maximum sequence length.
func (l *Loop) ContextWindow() int { return l.window }

// Request describes one turn. History must already end with the entry the model answers
// (a USER or OBSERVATION entry); the reply is appended to it when the turn completes.
type Request struct {
	System  string
	Tools   []glmtools.Definition
	History *conversation.History
	Params  Params
	// HandOff lists sentinels that end the turn without recording a reply, leaving the
	// caller to record what the model produced (tool mode uses the observation sentinel).
	HandOff []string
}

// Start prepares a turn. Nothing happens until the first call to Next or Run.
func (l *Loop) Start(ctx context.Context, req Request) *Turn {
	if req.History == nil {
		req.History = conversation.NewHistory()
	}
	return &Turn{
		loop:  l,
		ctx:   ctx,
		req:   req,
		state: StateIdle,
	}
}
