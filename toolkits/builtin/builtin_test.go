package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTools_Registration(t *testing.T) {
	tools, err := Tools(Options{})
	require.NoError(t, err)
	reg, err := glmtools.BuildRegistry(tools, glmtools.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	assert.Equal(t, []string{"random_number_generator", "get_weather", "get_time"}, reg.Names())

	tools, err = Tools(Options{EnableShell: true})
	require.NoError(t, err)
	require.Len(t, tools, 4)
	shell := tools[3]
	assert.Equal(t, "get_shell", shell.Name())
	assert.True(t, shell.(glmtools.ToolMetadata).IsDangerous())
	assert.Equal(t, 30*time.Second, shell.(glmtools.ToolMetadata).Timeout())
}

func TestTools_SchemaShape(t *testing.T) {
	tools, err := Tools(Options{})
	require.NoError(t, err)
	reg := testutil.NewTestRegistry(tools...)
	schema := reg.Schema()
	require.Len(t, schema, 3)
	rng := schema[0]
	assert.Equal(t, "Generates a random number x, s.t. range[0] <= x < range[1]", rng.Description)
	assert.Equal(t, []glmtools.ParamSpec{
		{Name: "seed", Description: "The random seed used by the generator", Type: "int", Required: true},
		{Name: "range", Description: "The range of the generated numbers", Type: "[2]int", Required: true},
	}, stripGoTypes(rng.Params))
}

func stripGoTypes(params []glmtools.ParamSpec) []glmtools.ParamSpec {
	out := make([]glmtools.ParamSpec, len(params))
	for i, p := range params {
		out[i] = glmtools.ParamSpec{Name: p.Name, Description: p.Description, Type: p.Type, Required: p.Required}
	}
	return out
}

func TestRandomNumberGenerator(t *testing.T) {
	tool, err := RandomNumberGenerator(Options{})
	require.NoError(t, err)
	reg := testutil.NewTestRegistry(tool)
	ctx := context.Background()

	first := reg.Dispatch(ctx, "random_number_generator", map[string]any{"seed": 42, "range": []any{0, 10}})
	second := reg.Dispatch(ctx, "random_number_generator", map[string]any{"seed": 42, "range": []any{0, 10}})
	assert.Equal(t, first, second)

	for seed := range 50 {
		res := reg.Execute(ctx, glmtools.ToolCall{Name: "random_number_generator", Params: map[string]any{"seed": seed, "range": []any{5, 8}}})
		require.NoError(t, res.Err)
		assert.Contains(t, []string{"5", "6", "7"}, res.Output)
	}

	res := reg.Execute(ctx, glmtools.ToolCall{Name: "random_number_generator", Params: map[string]any{"seed": 1, "range": []any{3, 3}}})
	assert.True(t, glmtools.IsClientError(res.Err))
	res = reg.Execute(ctx, glmtools.ToolCall{Name: "random_number_generator", Params: map[string]any{"seed": "x", "range": []any{0, 3}}})
	assert.ErrorIs(t, res.Err, glmtools.ErrValidation)
}

func TestWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "j1", r.URL.Query().Get("format"))
		if r.URL.Path != "/Paris" {
			http.Error(w, "unknown location", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"current_condition":[{"temp_C":"20","FeelsLikeC":"19","humidity":"40",`+
			`"weatherDesc":[{"value":"Sunny"}],"observation_time":"10:00 AM","windspeedKmph":"5"}]}`)
	}))
	defer srv.Close()

	tool, err := Weather(Options{WeatherURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	reg := testutil.NewTestRegistry(tool)

	out := reg.Dispatch(context.Background(), "get_weather", map[string]any{"city_name": "Paris"})
	assert.JSONEq(t, `{"current_condition":{"temp_C":"20","FeelsLikeC":"19","humidity":"40",`+
		`"weatherDesc":[{"value":"Sunny"}],"observation_time":"10:00 AM"}}`, out)

	out = reg.Dispatch(context.Background(), "get_weather", map[string]any{"city_name": "Atlantis"})
	assert.True(t, strings.HasPrefix(out, "Error encountered while fetching weather data!\n"))
	assert.Contains(t, out, "404")
}

func TestTime(t *testing.T) {
	fixed := time.Date(2024, time.March, 10, 14, 5, 9, 0, time.UTC)
	tool, err := Time(Options{Now: func() time.Time { return fixed }})
	require.NoError(t, err)
	out := testutil.NewTestRegistry(tool).Dispatch(context.Background(), "get_time", map[string]any{"no_use": "what time is it"})
	assert.Equal(t, "Today's date is 2024-03-10, the current time is 14:05:09, today is Sunday", out)
}

func TestShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	tool, err := Shell(Options{ShellTimeout: 5 * time.Second})
	require.NoError(t, err)
	reg := testutil.NewTestRegistry(tool)
	ctx := context.Background()

	assert.Equal(t, "hello\n", reg.Dispatch(ctx, "get_shell", map[string]any{"query": "echo hello"}))
	assert.Equal(t, "oops\n", reg.Dispatch(ctx, "get_shell", map[string]any{"query": "echo oops >&2; exit 3"}))
}
