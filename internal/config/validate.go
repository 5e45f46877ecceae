package config

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// SchemaError lists every schema violation of a settings document, sorted
// by field path.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

// ValidateSettings checks raw settings, as read from a config file, against
// the embedded JSON schema.
func ValidateSettings(settings map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(settings))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		issues = append(issues, re.Field()+": "+re.Description())
	}
	slices.Sort(issues)
	return &SchemaError{Issues: slices.Compact(issues)}
}
