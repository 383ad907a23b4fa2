package questionjson

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const testSchemaJSON = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {"type": "array", "minItems": 1}
  }
}`

const diagnosticSchemaJSON = `{
  "type": "object",
  "required": ["subjects"],
  "properties": {
    "subjects": {
      "type": "object",
      "minProperties": 1
    }
  }
}`

var (
	testSchema       = mustCompile("schema://generated-test.json", testSchemaJSON)
	diagnosticSchema = mustCompile("schema://diagnostic-test.json", diagnosticSchemaJSON)
)

func mustCompile(url, def string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("questionjson: parse schema %s: %v", url, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("questionjson: add schema %s: %v", url, err))
	}
	return c.MustCompile(url)
}

// validateShape checks the decoded document's top level. Any mismatch means
// the model produced no usable questions.
func validateShape(s *jsonschema.Schema, text string) error {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return ErrMalformedResponse
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyGeneration, err)
	}
	return nil
}
