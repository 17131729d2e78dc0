package glmtools

import (
	"bytes"
	"encoding/json"
	"net/url"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// paramsSchema builds the JSON Schema used to validate arguments for params. Unknown
// arguments are rejected, required ones must be present, and each property is typed from
// the Go type the spec was built with (hand-written specs without a Go type accept any value).
func paramsSchema(params []ParamSpec) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]any, 0, len(params))
	for _, p := range params {
		prop := typeSchema(p.goType)
		prop["description"] = p.Description
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func typeSchema(t reflect.Type) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string"}
		}
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Array:
		return map[string]any{
			"type":     "array",
			"items":    typeSchema(t.Elem()),
			"minItems": t.Len(),
			"maxItems": t.Len(),
		}
	case reflect.Map, reflect.Struct:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}

// compileSchema compiles a schema map into a validator. The map is not mutated.
func compileSchema(tool string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	doc, err := toJSONValue(schemaMap)
	if err != nil {
		return nil, err
	}
	loc := "https://glmtools.local/tools/" + url.PathEscape(tool) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, err
	}
	return c.Compile(loc)
}

// toJSONValue converts v into the generic form the validator expects (numbers as json.Number).
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
