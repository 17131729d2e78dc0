package glmtools

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToolOptions(t *testing.T) {
	var o toolOptions
	for _, opt := range []ToolOption{WithTimeout(2 * time.Second), WithTags("a", "b"), WithDangerous()} {
		opt(&o)
	}
	assert.Equal(t, 2*time.Second, o.timeout)
	assert.Equal(t, []string{"a", "b"}, o.tags)
	assert.True(t, o.dangerous)
}

func TestRegistryOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	before := func(context.Context, ToolCall) {}
	after := func(context.Context, ToolCall, Result) {}
	reg := NewRegistry(
		WithDefaultTimeout(time.Second),
		WithMaxConcurrency(3),
		WithLogger(logger),
		WithOnBeforeExecute(before),
		WithOnAfterExecute(after),
	)
	assert.Equal(t, time.Second, reg.opts.timeout)
	assert.Equal(t, 3, reg.opts.maxConcurrency)
	assert.Equal(t, 3, cap(reg.sem))
	assert.Same(t, logger, reg.opts.logger)
	assert.NotNil(t, reg.opts.onBefore)
	assert.NotNil(t, reg.opts.onAfter)
}

func TestRegistryOptions_Defaults(t *testing.T) {
	reg := NewRegistry(WithMaxConcurrency(0))
	assert.Nil(t, reg.sem)
	assert.Zero(t, reg.opts.timeout)
	assert.NotNil(t, reg.opts.logger)
}

func TestTool_TagsAreCopied(t *testing.T) {
	tool, err := Describe("t", "d", func(context.Context, Params) (any, error) { return nil, nil }, nil, WithTags("x"))
	assert.NoError(t, err)
	tags := tool.(ToolMetadata).Tags()
	tags[0] = "changed"
	assert.Equal(t, []string{"x"}, tool.(ToolMetadata).Tags())
}
