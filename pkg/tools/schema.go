package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor generates an inline JSON schema for a tool's argument struct.
//
// Supported tags on the struct fields:
//   - json:"name"                          parameter name
//   - jsonschema:"required"                mark required
//   - jsonschema:"description=..."         parameter description
//   - jsonschema:"enum=a|b"                allowed values
func SchemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	m, err := schemaToMap(schema)
	if err != nil {
		// Schema generation failing is a programming error in the tool's
		// arg struct, not a runtime condition.
		panic(fmt.Sprintf("SchemaFor: %v", err))
	}
	return m
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	if m["type"] == nil {
		m["type"] = "object"
	}
	return m, nil
}

// DecodeArgs unmarshals an untyped arg map into a tool's typed arg struct.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, &PermanentError{Cause: fmt.Errorf("encode args: %w", err)}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &PermanentError{Cause: fmt.Errorf("decode args: %w", err)}
	}
	return out, nil
}
