// schema.go implements a small reflection-based JSON Schema emitter for
// SimulatorConfig. The generated document is what `sim generate-schema`
// writes, and the same schema validates every config at load time through
// santhosh-tekuri/jsonschema.
package config

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// GenerateSchema reflects over SimulatorConfig and produces a JSON Schema
// document describing its shape, for `sim generate-schema`.
func GenerateSchema() map[string]any {
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"title":      "SimulatorConfig",
		"type":       "object",
		"properties": reflectStruct(reflect.TypeOf(SimulatorConfig{})),
		"required":   requiredFields(reflect.TypeOf(SimulatorConfig{})),
	}
}

func reflectStruct(t reflect.Type) map[string]any {
	props := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name := jsonName(f)
		if name == "-" {
			continue
		}
		props[name] = reflectType(f.Type)
	}
	return props
}

func requiredFields(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name := jsonName(f)
		if name == "-" || strings.Contains(f.Tag.Get("json"), "omitempty") {
			continue
		}
		out = append(out, name)
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	return strings.Split(tag, ",")[0]
}

func reflectType(t reflect.Type) map[string]any {
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
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": reflectType(t.Elem())}
	case reflect.Ptr:
		return reflectType(t.Elem())
	case reflect.Struct:
		return map[string]any{"type": "object", "properties": reflectStruct(t)}
	case reflect.Map:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}

// ValidateDocument validates a config document's raw JSON bytes against
// the generated schema, using jsonschema/v6.
func ValidateDocument(raw []byte) error {
	schemaDoc := GenerateSchema()
	schemaBytes, err := json.Marshal(schemaDoc)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	schemaResource, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return err
	}
	if err := compiler.AddResource("simulator-config.json", schemaResource); err != nil {
		return err
	}
	compiled, err := compiler.Compile("simulator-config.json")
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return compiled.Validate(inst)
}
