package glmtools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ParamSpec describes one tool parameter: its name, a type label shown to the model,
// a description and whether the model must supply it.
type ParamSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`

	goType reflect.Type
}

// Param builds a ParamSpec whose type label and validation schema come from T.
// Named scalar types render as their bare name (int, string); composite types render
// as their Go type string ([2]int, []string, map[string]int).
func Param[T any](name, description string, required bool) ParamSpec {
	typ := reflect.TypeFor[T]()
	return ParamSpec{
		Name:        name,
		Description: description,
		Type:        typeLabel(typ),
		Required:    required,
		goType:      typ,
	}
}

// GoType returns the Go type the spec was built from, or nil for a hand-written spec.
func (p ParamSpec) GoType() reflect.Type { return p.goType }

func typeLabel(t reflect.Type) string {
	if t == nil {
		return ""
	}
	switch t.Kind() {
	case reflect.Array, reflect.Slice, reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan:
		return t.String()
	case reflect.Interface:
		if t.Name() == "" {
			return "any"
		}
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

// validateParams checks the spec list of one tool: every parameter needs a unique name,
// a type and a description.
func validateParams(tool string, params []ParamSpec) error {
	seen := make(map[string]struct{}, len(params))
	for i, p := range params {
		if strings.TrimSpace(p.Name) == "" {
			return &RegistrationError{Tool: tool, Param: fmt.Sprintf("#%d", i), Reason: "missing name"}
		}
		if _, dup := seen[p.Name]; dup {
			return &RegistrationError{Tool: tool, Param: p.Name, Reason: "duplicate parameter"}
		}
		seen[p.Name] = struct{}{}
		if strings.TrimSpace(p.Type) == "" {
			return &RegistrationError{Tool: tool, Param: p.Name, Reason: "missing type annotation"}
		}
		if strings.TrimSpace(p.Description) == "" {
			return &RegistrationError{Tool: tool, Param: p.Name, Reason: "description must be a non-empty string"}
		}
	}
	return nil
}

// Params is the argument mapping handed to a Handler.
type Params map[string]any

// Has reports whether the model supplied name.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// String returns the string argument name.
func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", missingParam(name)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(name, "a string", v)
	}
	return s, nil
}

// Int returns the integer argument name. Integral floats and json.Number values are accepted.
func (p Params) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, missingParam(name)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, wrongType(name, "an integer", v)
	}
	return n, nil
}

// Float returns the numeric argument name.
func (p Params) Float(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, missingParam(name)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err == nil {
			return f, nil
		}
	default:
		if n, ok := toInt(v); ok {
			return float64(n), nil
		}
	}
	return 0, wrongType(name, "a number", v)
}

// Bool returns the boolean argument name.
func (p Params) Bool(name string) (bool, error) {
	v, ok := p[name]
	if !ok {
		return false, missingParam(name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(name, "a boolean", v)
	}
	return b, nil
}

// Ints returns the integer sequence argument name ([]any, []int or a tuple parsed from model output).
func (p Params) Ints(name string) ([]int, error) {
	v, ok := p[name]
	if !ok {
		return nil, missingParam(name)
	}
	switch xs := v.(type) {
	case []int:
		return append([]int(nil), xs...), nil
	case []any:
		out := make([]int, len(xs))
		for i, x := range xs {
			n, ok := toInt(x)
			if !ok {
				return nil, fmt.Errorf("parameter %q must be a sequence of integers, element %d is %T", name, i, x)
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, wrongType(name, "a sequence of integers", v)
}

// Decode copies the arguments into v (a pointer to a struct or map) through their JSON form.
func (p Params) Decode(v any) error {
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

func missingParam(name string) error {
	return &ClientError{Reason: fmt.Sprintf("missing required parameter %q", name), Err: ErrValidation}
}

func wrongType(name, want string, got any) error {
	return &ClientError{Reason: fmt.Sprintf("parameter %q must be %s, got %T", name, want, got), Err: ErrValidation}
}
