// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schemas for structured LLM responses. Model output is untrusted: every
// payload is validated before it is unmarshalled into domain types, and a
// schema violation is treated the same as a failed call.

// AssessmentSchema describes the content assessment payload returned by the
// family-friendliness prompt. It pins structure and types; range is handled
// by clamping in the assessor so a model that returns 10.5 degrades to 10
// instead of discarding the whole assessment.
const AssessmentSchema = `{
	"type": "object",
	"required": ["overall_score", "dimensions", "reasoning"],
	"properties": {
		"overall_score": {"type": "number"},
		"dimensions": {
			"type": "object",
			"required": ["age_appropriateness", "convenience", "value", "safety"],
			"properties": {
				"age_appropriateness": {"type": "number"},
				"convenience": {"type": "number"},
				"value": {"type": "number"},
				"safety": {"type": "number"}
			}
		},
		"reasoning": {"type": "string", "minLength": 1}
	}
}`

// SentimentSchema describes the review sentiment payload. Range is clamped
// by the assessor, as with AssessmentSchema.
const SentimentSchema = `{
	"type": "object",
	"required": ["sentiment_score"],
	"properties": {
		"sentiment_score": {"type": "number"},
		"summary": {"type": "string"}
	}
}`

// MetricsPatchSchema describes the structured facts extracted during resort
// research. Every field is optional; unknown fields are tolerated because
// models occasionally add commentary keys, and the unmarshal step drops them.
const MetricsPatchSchema = `{
	"type": "object",
	"properties": {
		"hasChildcare": {"type": "boolean"},
		"kidsEquipmentRental": {"type": "boolean"},
		"minSkiSchoolAge": {"type": "integer", "minimum": 0, "maximum": 18},
		"hasMagicCarpet": {"type": "boolean"},
		"beginnerTerrainPct": {"type": "number", "minimum": 0, "maximum": 100},
		"avgDayPassUsd": {"type": "number", "minimum": 0},
		"transferTimeMinutes": {"type": "integer", "minimum": 0},
		"familyLodgingOnSlope": {"type": "boolean"},
		"bestAgeRange": {"type": "string"},
		"nightSkiing": {"type": "boolean"}
	}
}`

// DiscoveryListSchema describes the candidate resort list returned by the
// discovery prompt.
const DiscoveryListSchema = `{
	"type": "object",
	"required": ["resorts"],
	"properties": {
		"resorts": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "country"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"country": {"type": "string", "minLength": 1},
					"region": {"type": "string"}
				}
			}
		}
	}
}`

// ValidateJSON validates a raw JSON document against a schema string.
func ValidateJSON(schemaJSON string, document []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewStringLoader(string(document))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateGo validates a document against a schema expressed as Go maps,
// e.g. the input/output schemas carried in the activity registry.
func ValidateGo(schema map[string]interface{}, document interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CheckSchemaCompiles reports whether a registry schema is itself valid
// JSON Schema. The registry tools run this before publishing an update.
func CheckSchemaCompiles(schema map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return fmt.Errorf("schema does not compile: %w", err)
	}
	return nil
}
