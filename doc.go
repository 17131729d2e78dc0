// Package glmtools registers typed, documented functions as tools for a chat language model
// and executes the calls the model requests.
//
// # Overview
//
// A tool is a Go function plus a declarative description of its parameters. The description is
// built once at startup (Describe with Param specs, or NewTool from an argument struct), collected
// into a Registry, and exported as a schema that the conversation package injects into the
// system prompt. When the model asks for a tool, the Registry validates the arguments against the
// same parameter specs, runs the function and turns the outcome into text for the model.
//
// Pipeline: Handler + []ParamSpec → Describe → Tool → BuildRegistry → Schema (prompt) →
// Dispatch (validate, call, stringify) → observation text.
//
// # Key concepts
//
//   - Fail fast at startup: a missing description or malformed parameter spec is a
//     RegistrationError returned by Describe, NewTool or Register, never a call-time surprise.
//   - Dispatch never fails: unknown tools, invalid arguments, errors and panics inside a tool are
//     returned as diagnostic text so the model can correct itself.
//   - Execute keeps the structured Result (output, error, duration) for logging and hooks.
//
// # Example
//
//	weather, err := glmtools.Describe("get_weather", "Get the current weather for `city_name`",
//	    func(ctx context.Context, p glmtools.Params) (any, error) {
//	        city, err := p.String("city_name")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return lookup(ctx, city)
//	    },
//	    []glmtools.ParamSpec{glmtools.Param[string]("city_name", "The name of the city to be queried", true)},
//	)
//	if err != nil { ... }
//	reg, err := glmtools.BuildRegistry([]glmtools.Tool{weather})
//	if err != nil { ... }
//	text := reg.Dispatch(ctx, "get_weather", map[string]any{"city_name": "Paris"})
package glmtools
