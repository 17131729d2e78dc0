package glmtools

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Tool with cross-cutting behavior such as logging or timeout overrides.
type Middleware func(Tool) Tool

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Tool) Tool {
		return &loggingTool{toolBase: toolBase{next: next}, logger: logger}
	}
}

// WithToolTimeouts overrides the execution timeout of the named tools. The Registry applies the
// override in place of its default and of any timeout set with WithTimeout. Tools not named in
// timeouts, or mapped to a non-positive duration, are returned unwrapped.
func WithToolTimeouts(timeouts map[string]time.Duration) Middleware {
	return func(next Tool) Tool {
		d, ok := timeouts[next.Name()]
		if !ok || d <= 0 {
			return next
		}
		return &timeoutOverride{toolBase: toolBase{next: next}, timeout: d}
	}
}

// toolBase delegates Tool and ToolMetadata to the wrapped Tool; used by middleware wrappers.
type toolBase struct{ next Tool }

func (b *toolBase) Name() string        { return b.next.Name() }
func (b *toolBase) Description() string { return b.next.Description() }
func (b *toolBase) Params() []ParamSpec { return b.next.Params() }

func (b *toolBase) Timeout() time.Duration {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.Timeout()
	}
	return 0
}
func (b *toolBase) Tags() []string {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.Tags()
	}
	return nil
}
func (b *toolBase) IsDangerous() bool {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.IsDangerous()
	}
	return false
}

type loggingTool struct {
	toolBase
	logger *slog.Logger
}

func (m *loggingTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	m.logger.Info("tool start", "tool", m.next.Name(), "params", params)
	start := time.Now()
	res, err := m.next.Execute(ctx, params)
	dur := time.Since(start)
	if err != nil {
		m.logger.Error("tool error", "tool", m.next.Name(), "duration", dur, "error", err)
		return nil, err
	}
	m.logger.Info("tool end", "tool", m.next.Name(), "duration", dur)
	return res, nil
}

// timeoutOverride only reports a different Timeout; the Registry sets the deadline.
type timeoutOverride struct {
	toolBase
	timeout time.Duration
}

func (t *timeoutOverride) Timeout() time.Duration { return t.timeout }

func (t *timeoutOverride) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.next.Execute(ctx, params)
}

// Use stores the given middlewares and reapplies them from scratch to all registered tools (onion order:
// first middleware is outermost). Tools registered after Use will also get these middlewares applied.
// Calling Use multiple times replaces the middleware chain and rewraps from raw tools, avoiding double-wrapping.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, raw := range r.rawTools {
		t := raw
		for i := len(middlewares) - 1; i >= 0; i-- {
			t = middlewares[i](t)
		}
		r.tools[name] = t
	}
}
