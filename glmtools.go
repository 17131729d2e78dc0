package glmtools

import (
	"context"
	"time"
)

// Handler is the body of a tool. params holds the model-supplied arguments keyed by parameter name;
// they have already been checked against the tool's parameter specs.
type Handler func(ctx context.Context, params Params) (any, error)

// Tool is the contract for a model-callable function.
type Tool interface {
	Name() string
	Description() string
	// Params returns the ordered parameter specs. Callers must not mutate the slice.
	Params() []ParamSpec
	// Execute validates params and runs the tool. The returned value is turned into text by the Registry.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ToolMetadata is implemented by tools created with Describe and NewTool and exposes optional
// per-tool settings. Registry uses Timeout() to override its default timeout when set.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	IsDangerous() bool
}

// ToolCall is a single execution request parsed from model output.
type ToolCall struct {
	ID     string
	Name   string
	Params map[string]any
}

// Result is the structured outcome of Registry.Execute. Output is always set: the stringified
// return value on success, or the diagnostic text on failure.
type Result struct {
	CallID   string
	Name     string
	Output   string
	Err      error
	Duration time.Duration
}

// OK reports whether the tool ran and returned without error.
func (r Result) OK() bool { return r.Err == nil }

// Definition is the model-readable description of one tool, as injected into the system prompt.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

func (d Definition) clone() Definition {
	d.Params = append([]ParamSpec(nil), d.Params...)
	if d.Params == nil {
		d.Params = []ParamSpec{}
	}
	return d
}
