package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const durationPattern = `^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// Schema describes config.json.
var Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "provider":      {"type": "string", "enum": ["ollama", "lmstudio", "openai", "anthropic"]},
    "model":         {"type": "string", "minLength": 1},
    "models":        {"type": "array", "items": {"type": "string", "minLength": 1}, "uniqueItems": true},
    "base_url":      {"type": "string", "pattern": "^https?://"},
    "api_key":       {"type": "string"},
    "backend":       {"type": "string", "enum": ["sqlite", "redis", "bleve", "none"]},
    "sqlite_path":   {"type": "string"},
    "redis_addr":    {"type": "string"},
    "redis_stream":  {"type": "string", "minLength": 1},
    "bleve_path":    {"type": "string"},
    "store_timeout": {"type": "string", "pattern": "` + durationPattern + `"},
    "model_timeout": {"type": "string", "pattern": "` + durationPattern + `"},
    "temperature":   {"type": "number", "minimum": 0, "maximum": 2},
    "max_output_tokens": {"type": "integer", "minimum": 0},
    "inbox_dir":     {"type": "string"},
    "markdown":      {"type": "boolean"},
    "log_level":     {"type": "string", "enum": ["trace", "debug", "info", "warn", "error"]}
  }
}`

// ValidationError lists every schema violation of a config document.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Errors, "; "))
}

// ValidateJSON checks a raw config document against Schema.
func ValidateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ValidationError{Errors: msgs}
	}
	return nil
}
