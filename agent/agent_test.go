package agent_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

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
	goleak.VerifyTestMain(m)
}

type weatherStub struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (w *weatherStub) tool() *testutil.MockTool {
	return &testutil.MockTool{
		NameVal:   "get_weather",
		DescVal:   "Get the current weather for `city_name`",
		ParamsVal: []glmtools.ParamSpec{glmtools.Param[string]("city_name", "The name of the city to be queried", true)},
		ExecuteFn: func(_ context.Context, params map[string]any) (any, error) {
			w.mu.Lock()
			w.calls = append(w.calls, params)
			w.mu.Unlock()
			return map[string]string{"temp_C": "20"}, nil
		},
	}
}

func newAgent(model generate.Model, reg *glmtools.Registry, opts ...agent.Option) *agent.Agent {
	loop := generate.NewLoop(model, generate.WithLogger(testutil.DiscardLogger()))
	opts = append([]agent.Option{agent.WithLogger(testutil.DiscardLogger())}, opts...)
	return agent.New(loop, reg, opts...)
}

func toolCallScript(name, body string) testutil.Script {
	return testutil.Reply(name+"\n", body, "<|observation|>")
}

func TestAgent_ToolRoundTrip(t *testing.T) {
	stub := &weatherStub{}
	reg := testutil.NewTestRegistry(stub.tool())
	model := testutil.NewScriptedModel(
		toolCallScript("get_weather", "```python\ntool_call(city_name='Paris')\n```"),
		testutil.Reply("It is 20 degrees in Paris.", "<|user|>"),
	)
	history := conversation.NewHistory()
	var kinds []agent.EventKind
	var call glmtools.ToolCall
	err := newAgent(model, reg).Chat(context.Background(), history, "What's the weather in Paris?", generate.DefaultParams(),
		func(e agent.Event) error {
			kinds = append(kinds, e.Kind)
			if e.Kind == agent.EventToolCall {
				call = e.Call
			}
			return nil
		})
	require.NoError(t, err)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, map[string]any{"city_name": "Paris"}, stub.calls[0])
	assert.Equal(t, "get_weather", call.Name)
	assert.Contains(t, kinds, agent.EventToolCall)
	assert.Contains(t, kinds, agent.EventObservation)

	assert.Equal(t, []conversation.Entry{
		{Role: conversation.RoleUser, Content: "What's the weather in Paris?"},
		{Role: conversation.RoleTool, Tool: "get_weather", Content: "```python\ntool_call(city_name='Paris')\n```"},
		{Role: conversation.RoleObservation, Content: `{"temp_C":"20"}`},
		{Role: conversation.RoleAssistant, Content: "It is 20 degrees in Paris."},
	}, history.Entries())

	prompts := model.Prompts()
	require.Len(t, prompts, 2)
	assert.True(t, strings.HasPrefix(prompts[0].Text, "<|system|>\n"+conversation.ToolPreamble))
	assert.Contains(t, prompts[1].Text, "<|assistant|>get_weather\n```python")
	assert.Contains(t, prompts[1].Text, "<|observation|>\n{\"temp_C\":\"20\"}<|assistant|>\n")
	assert.Equal(t, reg.Schema(), prompts[1].Tools)
}

func TestAgent_UnknownTool(t *testing.T) {
	reg := testutil.NewTestRegistry()
	model := testutil.NewScriptedModel(
		toolCallScript("nonexistent_tool", "```python\ntool_call()\n```"),
		testutil.Reply("Sorry."),
	)
	history := conversation.NewHistory()
	var observation string
	err := newAgent(model, reg).Chat(context.Background(), history, "do it", generate.Params{}, func(e agent.Event) error {
		if e.Kind == agent.EventObservation {
			observation = e.Observation
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Tool `nonexistent_tool` not found. Please use a provided tool.", observation)
	assert.Equal(t, 4, history.Len())
}

func TestAgent_ParseFailureIsObserved(t *testing.T) {
	stub := &weatherStub{}
	model := testutil.NewScriptedModel(
		toolCallScript("get_weather", "weather please"),
		testutil.Reply("Let me try again."),
	)
	history := conversation.NewHistory()
	err := newAgent(model, testutil.NewTestRegistry(stub.tool())).Chat(context.Background(), history, "Paris?", generate.Params{}, nil)
	require.NoError(t, err)
	assert.Empty(t, stub.calls)
	entries := history.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, conversation.RoleObservation, entries[2].Role)
	assert.True(t, strings.HasPrefix(entries[2].Content, "Failed to parse tool call: "))
}

func TestAgent_MaxRounds(t *testing.T) {
	stub := &weatherStub{}
	body := "```python\ntool_call(city_name='Paris')\n```"
	model := testutil.NewScriptedModel(
		toolCallScript("get_weather", body),
		toolCallScript("get_weather", body),
		toolCallScript("get_weather", body),
	)
	history := conversation.NewHistory()
	err := newAgent(model, testutil.NewTestRegistry(stub.tool()), agent.WithMaxRounds(2)).
		Chat(context.Background(), history, "loop", generate.Params{}, nil)
	assert.ErrorIs(t, err, agent.ErrMaxRounds)
	assert.Len(t, stub.calls, 2)
	assert.Equal(t, 2, model.Calls())
	assert.Equal(t, 5, history.Len())
}

func TestAgent_ChatMode(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.Reply("Hi", " there", "<|user|>"))
	history := conversation.NewHistory()
	var display string
	err := newAgent(model, nil, agent.WithSystemPrompt("You are helpful.")).
		Reply(context.Background(), history, "  Hello  ", generate.DefaultParams(), func(e agent.Event) error {
			display = e.Update.Display
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", display)
	assert.Equal(t, "<|system|>\nYou are helpful.<|user|>\nHello<|assistant|>\n", model.Prompts()[0].Text)
	assert.Empty(t, model.Prompts()[0].Tools)
	assert.Equal(t, 2, history.Len())
}

func TestAgent_Retry(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.Reply("first"), testutil.Reply("second"))
	a := newAgent(model, nil)
	history := conversation.NewHistory()
	require.NoError(t, a.Reply(context.Background(), history, "Hello", generate.Params{}, nil))
	require.NoError(t, a.Retry(context.Background(), agent.ModeChat, history, generate.Params{}, nil))
	assert.Equal(t, []conversation.Entry{
		{Role: conversation.RoleUser, Content: "Hello"},
		{Role: conversation.RoleAssistant, Content: "second"},
	}, history.Entries())

	err := a.Retry(context.Background(), agent.ModeChat, conversation.NewHistory(), generate.Params{}, nil)
	assert.ErrorIs(t, err, agent.ErrNothingToRetry)
}

func TestAgent_EmptyPrompt(t *testing.T) {
	model := testutil.NewScriptedModel()
	history := conversation.NewHistory()
	err := newAgent(model, nil).Ask(context.Background(), agent.ModeChat, history, " \n ", generate.Params{}, nil)
	assert.ErrorIs(t, err, agent.ErrEmptyPrompt)
	assert.Zero(t, history.Len())
	assert.Zero(t, model.Calls())
}

func TestAgent_YieldErrorStops(t *testing.T) {
	stop := errors.New("stop")
	model := testutil.NewScriptedModel(testutil.Reply("a", "b"))
	history := conversation.NewHistory()
	err := newAgent(model, nil).Reply(context.Background(), history, "Hi", generate.Params{}, func(agent.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, history.Len())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		mode agent.Mode
		err  bool
	}{
		{"chat", agent.ModeChat, false},
		{"", agent.ModeChat, false},
		{"Tool", agent.ModeTool, false},
		{"tools", agent.ModeTool, false},
		{"ci", agent.ModeChat, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := agent.ParseMode(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, m)
		})
	}
	assert.Equal(t, "tool", agent.ModeTool.String())
}

func TestAgent_OverflowLeavesHistoryUnchanged(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.Reply("Hello!"))
	loop := generate.NewLoop(model, generate.WithContextWindow(200), generate.WithLogger(testutil.DiscardLogger()))
	a := agent.New(loop, nil, agent.WithLogger(testutil.DiscardLogger()))
	params := generate.Params{MaxNewTokens: 50}
	history := conversation.NewHistory()

	var final generate.Update
	record := func(e agent.Event) error {
		if e.Kind == agent.EventToken && e.Update.Final {
			final = e.Update
		}
		return nil
	}
	require.NoError(t, a.Reply(context.Background(), history, strings.Repeat("x", 300), params, record))
	assert.Equal(t, generate.StateTruncatedInput, final.State)
	assert.Equal(t, 0, history.Len())
	assert.Equal(t, 0, model.Calls())

	require.NoError(t, a.Reply(context.Background(), history, "hi", params, record))
	assert.Equal(t, generate.StateDone, final.State)
	assert.Equal(t, []conversation.Entry{
		{Role: conversation.RoleUser, Content: "hi"},
		{Role: conversation.RoleAssistant, Content: "Hello!"},
	}, history.Entries())
}

// countFunc adapts a function to generate.TokenCounter.
type countFunc func(string) int

func (f countFunc) CountTokens(text string) (int, error) { return f(text), nil }

func TestAgent_RetryOverflowKeepsPreviousAnswer(t *testing.T) {
	tokens := 10
	model := testutil.NewScriptedModel(testutil.Reply("First answer."))
	loop := generate.NewLoop(model,
		generate.WithContextWindow(100),
		generate.WithTokenCounter(countFunc(func(string) int { return tokens })),
		generate.WithLogger(testutil.DiscardLogger()),
	)
	a := agent.New(loop, nil, agent.WithLogger(testutil.DiscardLogger()))
	params := generate.Params{MaxNewTokens: 50}
	history := conversation.NewHistory()
	require.NoError(t, a.Reply(context.Background(), history, "question", params, nil))
	before := history.Entries()

	tokens = 80
	require.NoError(t, a.Retry(context.Background(), agent.ModeChat, history, params, nil))
	assert.Equal(t, before, history.Entries())
	assert.Equal(t, 1, model.Calls())
}

func TestAgent_ToolModeOverflowDropsRequest(t *testing.T) {
	stub := &weatherStub{}
	model := testutil.NewScriptedModel(toolCallScript("get_weather", "```python\ntool_call(city_name='Paris')\n```"))
	calls := 0
	loop := generate.NewLoop(model,
		generate.WithContextWindow(100),
		generate.WithTokenCounter(countFunc(func(string) int {
			calls++
			if calls > 1 {
				return 90
			}
			return 10
		})),
		generate.WithLogger(testutil.DiscardLogger()),
	)
	a := agent.New(loop, testutil.NewTestRegistry(stub.tool()), agent.WithLogger(testutil.DiscardLogger()))
	history := conversation.NewHistory(conversation.Entry{Role: conversation.RoleUser, Content: "earlier"})
	require.NoError(t, a.Chat(context.Background(), history, "weather in Paris?", generate.Params{MaxNewTokens: 20}, nil))
	assert.Len(t, stub.calls, 1)
	assert.Equal(t, []conversation.Entry{{Role: conversation.RoleUser, Content: "earlier"}}, history.Entries())
}
