package wire

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	stepDefinitionsSchema = mustSchema(`{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["id", "regexp"],
			"properties": {
				"id":     {"type": "string"},
				"regexp": {"type": "string"}
			}
		}
	}`)

	argumentsSchema = mustSchema(`{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["val", "pos"],
			"properties": {
				"val": {"type": ["string", "null"]},
				"pos": {"type": "integer", "minimum": 0}
			}
		}
	}`)

	tableSchema = mustSchema(`{
		"type": "array",
		"items": {
			"type": "array",
			"items": {"type": ["string", "number", "boolean", "null"]}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("wire: invalid schema: %v", err))
	}
	return s
}

// validate checks payload against schema and flattens the violations
// into one error.
func validate(schema *gojsonschema.Schema, payload string) error {
	res, err := schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}
