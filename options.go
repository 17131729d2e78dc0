package glmtools

import (
	"context"
	"log/slog"
	"time"
)

// toolOptions hold optional tool settings (timeout, tags, dangerous flag).
type toolOptions struct {
	timeout   time.Duration
	tags      []string
	dangerous bool
}

// ToolOption configures a tool (e.g. WithTimeout, WithDangerous).
type ToolOption func(*toolOptions)

// WithTimeout sets a per-tool timeout, used by the Registry instead of its default.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags (metadata for listing and filtering).
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// WithDangerous marks the tool as dangerous (shell access, writes). Front ends may refuse to
// register such tools unless explicitly enabled.
func WithDangerous() ToolOption {
	return func(o *toolOptions) {
		o.dangerous = true
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout        time.Duration
	maxConcurrency int
	logger         *slog.Logger
	onBefore       func(context.Context, ToolCall)
	onAfter        func(context.Context, ToolCall, Result)
}

// WithDefaultTimeout sets the default execution timeout for tools. Zero (the default) means
// tools run until they return or the caller's context ends.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency limits concurrent tool executions (semaphore).
// Pass 0 or negative to disable the semaphore (unlimited concurrency).
func WithMaxConcurrency(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxConcurrency = n
	}
}

// WithLogger sets the logger for registration and dispatch events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution, including failed and unknown calls.
func WithOnAfterExecute(fn func(context.Context, ToolCall, Result)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}
