// Package schema builds the JSON Schema fragments hand-written tools use to
// describe their parameters.
//
//	params := schema.Object(map[string]*jsonschema.Schema{
//		"sections": schema.Array("Sections to include", schema.Enum("", "cpu", "memory")),
//	})
package schema
