package glmtools

import (
	"context"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// tool is the internal implementation of Tool built by Describe or NewTool.
type tool struct {
	name        string
	description string
	params      []ParamSpec
	validator   *jsonschema.Schema
	execute     func(context.Context, map[string]any) (any, error)
	opts        toolOptions
}

// Describe builds a Tool from a handler and an ordered list of parameter specs (see Param).
// The description and every parameter are checked here, so a malformed tool fails at startup
// with a RegistrationError naming the offending parameter.
// Execute validates the arguments against params before calling fn; unknown arguments,
// missing required ones and wrong JSON types are reported as ClientError.
func Describe(name, description string, fn Handler, params []ParamSpec, opts ...ToolOption) (Tool, error) {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	if fn == nil {
		return nil, &RegistrationError{Tool: name, Reason: "handler must not be nil"}
	}
	t, err := newTool(name, description, params, o)
	if err != nil {
		return nil, err
	}
	t.execute = func(ctx context.Context, args map[string]any) (any, error) {
		if err := validateArgs(t.validator, args); err != nil {
			return nil, err
		}
		p := make(Params, len(args))
		for k, v := range args {
			p[k] = v
		}
		res, err := fn(ctx, p)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		return res, nil
	}
	return t, nil
}

// newTool checks the definition and compiles the argument schema.
func newTool(name, description string, params []ParamSpec, o toolOptions) (*tool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &RegistrationError{Reason: "tool name must not be empty"}
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &RegistrationError{Tool: name, Reason: "missing description"}
	}
	if err := validateParams(name, params); err != nil {
		return nil, err
	}
	validator, err := compileSchema(name, paramsSchema(params))
	if err != nil {
		return nil, &RegistrationError{Tool: name, Reason: "compile argument schema: " + err.Error()}
	}
	return &tool{
		name:        name,
		description: description,
		params:      append([]ParamSpec(nil), params...),
		validator:   validator,
		opts:        o,
	}, nil
}

func (t *tool) Name() string        { return t.name }
func (t *tool) Description() string { return t.description }
func (t *tool) Params() []ParamSpec { return t.params }

func (t *tool) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.execute(ctx, params)
}

func (t *tool) Timeout() time.Duration { return t.opts.timeout }
func (t *tool) Tags() []string         { return append([]string(nil), t.opts.tags...) }
func (t *tool) IsDangerous() bool      { return t.opts.dangerous }

var (
	_ Tool         = (*tool)(nil)
	_ ToolMetadata = (*tool)(nil)
)
