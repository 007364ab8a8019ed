package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

func typed(t jsonschema.SimpleType, description string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: &jsonschema.Type{SimpleTypes: &t}}
	if description != "" {
		s.Description = &description
	}
	return s
}

// String is a string parameter.
func String(description string) *jsonschema.Schema {
	return typed(jsonschema.String, description)
}

// Integer is an integer parameter.
func Integer(description string) *jsonschema.Schema {
	return typed(jsonschema.Integer, description)
}

// Bool is a boolean parameter with a default.
func Bool(description string, def bool) *jsonschema.Schema {
	s := typed(jsonschema.Boolean, description)
	v := interface{}(def)
	s.Default = &v
	return s
}

// Enum is a string parameter restricted to values.
func Enum(description string, values ...string) *jsonschema.Schema {
	s := String(description)
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

// Array is a list of items.
func Array(description string, items *jsonschema.Schema) *jsonschema.Schema {
	s := typed(jsonschema.Array, description)
	s.Items = &jsonschema.Items{SchemaOrBool: &jsonschema.SchemaOrBool{TypeObject: items}}
	return s
}

// Object groups properties. Additional properties are rejected.
func Object(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	s := typed(jsonschema.Object, "")
	s.Properties = make(map[string]jsonschema.SchemaOrBool, len(properties))
	for name, prop := range properties {
		s.Properties[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}
	s.Required = required
	closed := false
	s.AdditionalProperties = &jsonschema.SchemaOrBool{TypeBoolean: &closed}
	return s
}
