package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/agent"
	"github.com/skosovsky/glmtools/conversation"
	"github.com/skosovsky/glmtools/generate"
	"github.com/skosovsky/glmtools/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glmtools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTools_JSON(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")
	out, err := execute(t, "tools", "--json", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, `{"name": "random_number_generator", "description": `)
	assert.NotContains(t, out, "\n    ")
	assert.Contains(t, out, `"name": "get_weather"`)
	assert.Contains(t, out, `"name": "get_time"`)
	assert.NotContains(t, out, "get_shell")
}

func TestTools_Table(t *testing.T) {
	path := writeConfig(t, "tools:\n  enable_shell: true\n")
	out, err := execute(t, "tools", "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "get_weather\n  Get the current weather for `city_name`")
	assert.Contains(t, out, "city_name (string, required)")
	assert.Contains(t, out, "get_shell [dangerous]")
}

func TestRegistry_ToolTimeouts(t *testing.T) {
	path := writeConfig(t, "tools:\n  enable_shell: true\n  timeout_seconds: 5\n  timeouts:\n    get_shell: 45\n")
	a, err := loadApp(&rootFlags{configPath: path}, io.Discard)
	require.NoError(t, err)
	reg, err := a.registry()
	require.NoError(t, err)

	timeout := func(name string) time.Duration {
		tool, ok := reg.Tool(name)
		require.True(t, ok, name)
		tm, ok := tool.(glmtools.ToolMetadata)
		require.True(t, ok, name)
		return tm.Timeout()
	}
	assert.Equal(t, 45*time.Second, timeout("get_shell"))
	assert.Zero(t, timeout("get_weather"))
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing config", []string{"tools", "-c", filepath.Join(t.TempDir(), "nope.yaml")}, exitConfig},
		{"bad log level", []string{"tools", "--log-level", "loud", "-c", writeConfig(t, "")}, exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			var exitErr ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.code, exitErr.Code)
		})
	}
}

func TestChat_RejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "chat", "--mode", "voice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice")
}

func newREPL(model generate.Model) (*repl, *bytes.Buffer) {
	loop := generate.NewLoop(model, generate.WithLogger(testutil.DiscardLogger()))
	var out bytes.Buffer
	return &repl{
		agent:   agent.New(loop, nil, agent.WithLogger(testutil.DiscardLogger())),
		history: conversation.NewHistory(),
		mode:    agent.ModeChat,
		params:  generate.DefaultParams(),
		out:     &out,
	}, &out
}

func TestREPL_AskAndRetry(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.Reply("Hello", " there!", "<|user|>"),
		testutil.Reply("Hi again."),
	)
	r, out := newREPL(model)
	ctx := context.Background()

	quit, err := r.handle(ctx, "  Hi  ")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "Hello there!")

	_, err = r.handle(ctx, "/retry")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Hi again.")
	assert.Equal(t, []conversation.Entry{
		{Role: conversation.RoleUser, Content: "Hi"},
		{Role: conversation.RoleAssistant, Content: "Hi again."},
	}, r.history.Entries())
}

func TestREPL_Commands(t *testing.T) {
	r, out := newREPL(testutil.NewScriptedModel())
	ctx := context.Background()
	r.history.Append(conversation.Entry{Role: conversation.RoleUser, Content: "Hi"})

	_, err := r.handle(ctx, "/history")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[user] Hi")

	_, err = r.handle(ctx, "/mode tool")
	require.NoError(t, err)
	assert.Equal(t, agent.ModeTool, r.mode)
	assert.Equal(t, 0, r.history.Len())
	assert.Contains(t, out.String(), "mode: tool")

	_, err = r.handle(ctx, "/mode voice")
	require.Error(t, err)
	assert.Equal(t, agent.ModeTool, r.mode)

	r.history.Append(conversation.Entry{Role: conversation.RoleUser, Content: "Hi"})
	_, err = r.handle(ctx, "/clear")
	require.NoError(t, err)
	assert.Equal(t, 0, r.history.Len())

	_, err = r.handle(ctx, "/retry")
	require.ErrorIs(t, err, agent.ErrNothingToRetry)

	_, err = r.handle(ctx, "/dance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/help")

	quit, err := r.handle(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, err = r.handle(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, quit)
}

func TestREPL_RendersToolRound(t *testing.T) {
	r, out := newREPL(testutil.NewScriptedModel())
	require.NoError(t, r.render(agent.Event{Kind: agent.EventToken, Update: generate.Update{Delta: "get_time\n"}}))
	require.NoError(t, r.render(agent.Event{Kind: agent.EventObservation, Observation: "Today is Friday"}))
	require.NoError(t, r.render(agent.Event{Kind: agent.EventToken, Update: generate.Update{
		Final:   true,
		State:   generate.StateTruncatedInput,
		Message: "Current input sequence length 9000 plus max_new_tokens 1024 is too long.",
	}}))
	s := out.String()
	assert.Contains(t, s, "get_time\n")
	assert.Contains(t, s, "Observation:\n```\nToday is Friday\n```")
	assert.Contains(t, s, "is too long")
}
