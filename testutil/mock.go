// Package testutil provides test helpers for glmtools: a configurable tool, a quiet registry and
// a scripted model for driving generation turns without a real backend.
package testutil

import (
	"context"

	"github.com/skosovsky/glmtools"
)

// MockTool is a configurable Tool implementation for tests.
type MockTool struct {
	NameVal   string
	DescVal   string
	ParamsVal []glmtools.ParamSpec
	ExecuteFn func(ctx context.Context, params map[string]any) (any, error)
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the tool description.
func (m *MockTool) Description() string {
	if m.DescVal != "" {
		return m.DescVal
	}
	return "Mock tool"
}

// Params returns the parameter specs (or none).
func (m *MockTool) Params() []glmtools.ParamSpec {
	if m.ParamsVal != nil {
		return m.ParamsVal
	}
	return []glmtools.ParamSpec{}
}

// Execute runs ExecuteFn if set, otherwise returns nil.
func (m *MockTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, params)
	}
	return nil, nil
}

// Ensure MockTool implements Tool.
var _ glmtools.Tool = (*MockTool)(nil)
