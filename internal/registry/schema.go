// ABOUTME: JSON Schema compilation and validation for tool input/output contracts
// ABOUTME: Flattens nested validation failures into a single readable detail string

package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// defaultInputSchema is used when a definition declares no input contract.
var defaultInputSchema = json.RawMessage(`{"type":"object"}`)

// compileSchema compiles a raw JSON Schema document under a per-tool URL.
func compileSchema(toolName, kind string, raw json.RawMessage) (*jsonschema.Schema, error) {
	url := fmt.Sprintf("mem:///tools/%s/%s.json", toolName, kind)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("loading %s schema: %w", kind, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", kind, err)
	}
	return schema, nil
}

// decodeInstance decodes JSON keeping numbers exact for schema validation.
func decodeInstance(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// validate checks data against schema.
func validate(schema *jsonschema.Schema, data []byte) error {
	instance, err := decodeInstance(data)
	if err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return schema.Validate(instance)
}

// describeValidation reduces a validation error to its leaf messages,
// e.g. "/: missing properties: 'id'; /limit: expected integer, but got string".
func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var parts []string
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := v.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+v.Message)
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, "; ")
}
