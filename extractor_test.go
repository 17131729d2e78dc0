package glmtools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City  string `json:"city_name" jsonschema:"required" jsonschema_description:"The name of the city to be queried"`
	Units string `json:"units,omitempty" jsonschema_description:"metric or imperial"`
}

type weatherReport struct {
	City string `json:"city"`
	Temp int    `json:"temp_C"`
}

type rangeArgs struct {
	Seed  int    `json:"seed" jsonschema:"required" jsonschema_description:"The random seed used by the generator"`
	Range [2]int `json:"range" jsonschema:"required" jsonschema_description:"The range of the generated numbers"`
}

func (a rangeArgs) Validate() error {
	if a.Range[0] >= a.Range[1] {
		return errors.New("range[0] must be less than range[1]")
	}
	return nil
}

type ptrValidated struct {
	N int `json:"n" jsonschema_description:"A positive number"`
}

func (p *ptrValidated) Validate() error {
	if p.N < 0 {
		return &ClientError{Reason: "n must not be negative"}
	}
	return nil
}

func TestNewTool_DerivesParams(t *testing.T) {
	tool, err := NewTool("get_weather", "Get the current weather for `city_name`",
		func(_ context.Context, a weatherArgs) (weatherReport, error) {
			return weatherReport{City: a.City, Temp: 21}, nil
		})
	require.NoError(t, err)
	params := tool.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "city_name", params[0].Name)
	assert.Equal(t, "string", params[0].Type)
	assert.True(t, params[0].Required)
	assert.Equal(t, "The name of the city to be queried", params[0].Description)
	assert.Equal(t, "units", params[1].Name)
	assert.False(t, params[1].Required)

	out, err := tool.Execute(context.Background(), map[string]any{"city_name": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, weatherReport{City: "Paris", Temp: 21}, out)
	assert.JSONEq(t, `{"city":"Paris","temp_C":21}`, Stringify(out))
}

func TestNewTool_Validatable(t *testing.T) {
	tool, err := NewTool("random_number_generator", "Generates a random number",
		func(_ context.Context, a rangeArgs) (int, error) {
			return a.Range[0], nil
		})
	require.NoError(t, err)
	assert.Equal(t, "[2]int", tool.Params()[1].Type)

	out, err := tool.Execute(context.Background(), map[string]any{"seed": 7, "range": []any{1, 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	_, err = tool.Execute(context.Background(), map[string]any{"seed": 7, "range": []any{10, 1}})
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "range[0] must be less than range[1]")
}

func TestNewTool_PointerReceiverValidate(t *testing.T) {
	tool, err := NewTool("count", "Count", func(_ context.Context, a ptrValidated) (int, error) {
		return a.N, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), map[string]any{"n": -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n must not be negative")
}

func TestNewTool_RegistrationErrors(t *testing.T) {
	type noDesc struct {
		Q string `json:"q"`
	}
	_, err := NewTool("t", "d", func(context.Context, noDesc) (string, error) { return "", nil })
	require.Error(t, err)
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "q", re.Param)

	_, err = NewTool("t", "d", func(context.Context, int) (string, error) { return "", nil })
	assert.True(t, IsRegistrationError(err))

	_, err = NewTool[weatherArgs, string]("t", "d", nil)
	assert.True(t, IsRegistrationError(err))
}

func TestNewTool_RejectsUnknownArguments(t *testing.T) {
	tool, err := NewTool("get_weather", "Weather", func(_ context.Context, a weatherArgs) (string, error) {
		return a.City, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), map[string]any{"city_name": "Paris", "country": "FR"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = tool.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}
