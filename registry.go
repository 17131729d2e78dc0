package glmtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Registry holds tools and executes them with optional timeout and semaphore. Panics inside
// tools are always recovered. Registration is expected at startup; after that the Registry is
// read-mostly and safe to share between sessions.
type Registry struct {
	tools       map[string]Tool // wrapped with middlewares, used by Execute
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares from scratch
	order       []string
	sem         chan struct{}
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewRegistry creates an empty Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Registry{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
		sem:      sem,
		opts:     o,
		done:     make(chan struct{}),
	}
}

// BuildRegistry creates a Registry and registers tools in order. It stops at the first
// malformed or duplicate tool and returns its RegistrationError.
func BuildRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Stored middlewares (see Use) are applied to the tool before registration.
// The definition is checked again so hand-written Tool implementations get the same guarantees as
// Describe; a duplicate name is a RegistrationError.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return &RegistrationError{Reason: "tool must not be nil"}
	}
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return &RegistrationError{Reason: "tool name must not be empty"}
	}
	if strings.TrimSpace(t.Description()) == "" {
		return &RegistrationError{Tool: name, Reason: "missing description"}
	}
	if err := validateParams(name, t.Params()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rawTools[name]; exists {
		return &RegistrationError{Tool: name, Reason: "already registered"}
	}
	r.rawTools[name] = t
	r.order = append(r.order, name)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		t = r.middlewares[i](t)
	}
	r.tools[name] = t
	r.opts.logger.Info("registered tool", "tool", name, "params", len(t.Params()))
	return nil
}

// Schema returns the definitions of all tools in registration order. The result is an
// independent copy; mutating it does not affect the Registry.
func (r *Registry) Schema() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.rawTools[name]
		out = append(out, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Params:      t.Params(),
		}.clone())
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tool returns the tool with the given name (after middlewares are applied), or (nil, false) if not found.
func (r *Registry) Tool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Dispatch runs the named tool and returns text for the model. It never panics: unknown names,
// invalid arguments, tool errors and recovered panics all come back as explanatory text.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]any) string {
	return r.Execute(ctx, ToolCall{Name: name, Params: params}).Output
}

// Execute runs one tool call and returns the structured Result. The after-execution hook
// (WithOnAfterExecute) is always invoked with the final Result.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (res Result) {
	res = Result{CallID: call.ID, Name: call.Name}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			if res.Output == "" {
				res.Output = FormatDiagnostic(res.Err)
			}
			r.opts.logger.Warn("tool call failed", "tool", call.Name, "duration", res.Duration, "error", res.Err)
		}
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, res)
		}
	}()

	r.mu.RLock()
	select {
	case <-r.done:
		r.mu.RUnlock()
		res.Err = ErrShutdown
		return res
	default:
	}
	t, ok := r.tools[call.Name]
	if !ok {
		r.mu.RUnlock()
		res.Err = fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
		res.Output = notFoundText(call.Name)
		return res
	}
	r.running.Add(1)
	r.mu.RUnlock()
	defer r.running.Done()

	if err := r.acquireSemaphore(ctx); err != nil {
		res.Err = &SystemError{Err: err}
		return res
	}
	defer r.releaseSemaphore()

	timeout := r.opts.timeout
	if tm, ok := t.(ToolMetadata); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Registered after the result defer so it runs first and fills res.Err before the hook sees it.
	defer func() {
		if p := recover(); p != nil {
			res.Output = ""
			res.Err = &SystemError{Err: &panicError{p: p, stack: debug.Stack()}}
		}
	}()

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}
	out, err := t.Execute(ctx, call.Params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = &SystemError{Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
		}
		res.Err = wrapHandlerError(err)
		return res
	}
	res.Output = Stringify(out)
	return res
}

func (r *Registry) acquireSemaphore(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) releaseSemaphore() {
	if r.sem != nil {
		<-r.sem
	}
}

// Shutdown closes the registry for new calls and waits for in-flight executions or ctx to cancel.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
