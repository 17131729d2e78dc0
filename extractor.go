package glmtools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	reflectschema "github.com/invopop/jsonschema"
)

// NewTool builds a Tool from a typed function. Parameters are derived from the exported fields
// of the argument struct T: the json tag gives the name, the jsonschema_description tag (or
// jsonschema:"description=...") the description, and jsonschema:"required" marks it required.
// A field without a description is a RegistrationError.
// Execute validates the arguments, decodes them into T, runs T.Validate when T implements
// Validatable, then calls fn.
func NewTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (Tool, error) {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	if fn == nil {
		return nil, &RegistrationError{Tool: name, Reason: "handler must not be nil"}
	}
	params, err := structParams[T](name)
	if err != nil {
		return nil, err
	}
	t, err := newTool(name, description, params, o)
	if err != nil {
		return nil, err
	}
	t.execute = func(ctx context.Context, raw map[string]any) (any, error) {
		args, err := decodeArgs[T](t.validator, raw)
		if err != nil {
			return nil, err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		return res, nil
	}
	return t, nil
}

// structParams reflects T into an ordered list of parameter specs.
func structParams[T any](tool string) ([]ParamSpec, error) {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, &RegistrationError{Tool: tool, Reason: fmt.Sprintf("argument type must be a struct, got %s", typ)}
	}
	r := &reflectschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.ReflectFromType(typ)
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	fields := jsonFields(typ)
	var params []ParamSpec
	if schema.Properties == nil {
		return params, nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		field, ok := fields[pair.Key]
		if !ok {
			continue
		}
		var desc string
		if pair.Value != nil {
			desc = strings.TrimSpace(pair.Value.Description)
		}
		params = append(params, ParamSpec{
			Name:        pair.Key,
			Description: desc,
			Type:        typeLabel(field.Type),
			Required:    required[pair.Key],
			goType:      field.Type,
		})
	}
	return params, nil
}

// jsonFields maps json property names to the exported top-level fields of typ.
func jsonFields(typ reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		out[name] = field
	}
	return out
}

// decodeArgs validates raw against the schema, decodes it into T and runs Validatable.
func decodeArgs[T any](validator schemaValidator, raw map[string]any) (T, error) {
	var zero T
	if err := validateArgs(validator, raw); err != nil {
		return zero, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return zero, wrapDecodeError(err)
	}
	var args T
	if err := json.Unmarshal(data, &args); err != nil {
		return zero, wrapDecodeError(err)
	}
	if err := runCustomValidation(args); err != nil {
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// runCustomValidation runs Validatable on args; if args does not implement it,
// it tries &args for value types (pointer receiver).
func runCustomValidation[T any](args T) error {
	if _, ok := any(args).(Validatable); ok {
		return validateCustom(any(args))
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}
