package glmtools

// Validatable is implemented by argument structs (see NewTool) that need custom business validation.
// Called after schema validation and decoding.
type Validatable interface {
	Validate() error
}

// schemaValidator validates a JSON-like value (e.g. the result of toJSONValue).
// *jsonschema.Schema implements it.
type schemaValidator interface {
	Validate(v any) error
}

// validateArgs runs schema validation on the raw argument mapping. A nil mapping is treated as empty.
func validateArgs(validate schemaValidator, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	v, err := toJSONValue(params)
	if err != nil {
		return wrapDecodeError(err)
	}
	if err := validate.Validate(v); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// validateCustom runs Validatable if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}
